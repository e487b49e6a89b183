// README: Base handler utilities (JSON helpers, error mapping, path/query parsing).
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"drivebook/internal/apperr"
	httpmiddleware "drivebook/internal/http/middleware"
	"drivebook/internal/logger"
	"drivebook/internal/types"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// isValidID accepts generated hex IDs as well as seeded catalog IDs such as
// "pkg_out_8h" and externally issued UIDs.
func isValidID(v string) bool {
	if v == "" || len(v) > 128 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '-' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeBadRequest(c *gin.Context, msg string) {
	writeJSON(c, http.StatusBadRequest, errorResponse{
		Error:     msg,
		Code:      string(apperr.InvalidInput),
		RequestID: httpmiddleware.GetRequestID(c),
	})
}

// writeError maps err to its apperr kind. Internal errors are logged and
// never echoed to the client.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		logger.FromContext(c.Request.Context()).Error("request failed",
			slog.String("action", c.FullPath()),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(c, kind.HTTPStatus(), errorResponse{
		Error:     apperr.Message(err),
		Code:      string(kind),
		RequestID: httpmiddleware.GetRequestID(c),
	})
}

// pathID reads and validates a path parameter; it writes the 400 itself.
func pathID(c *gin.Context, name string) (types.ID, bool) {
	v := c.Param(name)
	if !isValidID(v) {
		writeBadRequest(c, "invalid "+name)
		return "", false
	}
	return types.ID(v), true
}

func queryLimit(c *gin.Context) (int, bool) {
	v := c.Query("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeBadRequest(c, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func callerID(c *gin.Context) types.ID {
	return types.ID(httpmiddleware.CallerUID(c))
}
