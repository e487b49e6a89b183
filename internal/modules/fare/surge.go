package fare

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"drivebook/internal/config"
)

// SurgePolicy decides the multiplier for one estimate. applied=false means
// the total is left untouched.
type SurgePolicy interface {
	Multiplier() (factor float64, applied bool)
}

// RandomSurge draws a factor uniformly from [Min, Max) per request and applies
// it only above Threshold. With the default 1.0/1.8/1.3 roughly 37.5% of
// estimates carry surge.
type RandomSurge struct {
	mu        sync.Mutex
	rng       *rand.Rand
	min       float64
	max       float64
	threshold float64
}

func NewRandomSurge(src rand.Source, lo, hi, threshold float64) *RandomSurge {
	return &RandomSurge{rng: rand.New(src), min: lo, max: hi, threshold: threshold}
}

func (s *RandomSurge) Multiplier() (float64, bool) {
	s.mu.Lock()
	f := s.rng.Float64()
	s.mu.Unlock()
	m := math.Round((s.min+f*(s.max-s.min))*100) / 100
	return m, m > s.threshold
}

type NoSurge struct{}

func (NoSurge) Multiplier() (float64, bool) { return 1, false }

// FixedSurge always applies the same factor when it exceeds 1.
type FixedSurge float64

func (f FixedSurge) Multiplier() (float64, bool) { return float64(f), f > 1 }

// PolicyFromConfig builds the configured policy. src seeds the random policy.
func PolicyFromConfig(cfg config.SurgeConfig, src rand.Source) (SurgePolicy, error) {
	switch cfg.Policy {
	case "", "random":
		return NewRandomSurge(src, cfg.Min, cfg.Max, cfg.Threshold), nil
	case "none":
		return NoSurge{}, nil
	case "fixed":
		return FixedSurge(cfg.Fixed), nil
	default:
		return nil, fmt.Errorf("unknown surge policy %q", cfg.Policy)
	}
}
