package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFareDefaults(t *testing.T) {
	fare, err := LoadFare("")
	if err != nil {
		t.Fatalf("LoadFare: %v", err)
	}
	h, ok := fare.Rates["Hatchback"]
	if !ok {
		t.Fatal("expected Hatchback in default rate card")
	}
	if h.BaseFare != 30 || h.PerKm != 7 || h.PerMin != 1 || h.BookingFee != 10 {
		t.Fatalf("unexpected Hatchback rate: %+v", h)
	}
	if fare.Surge.Policy != "random" || fare.Surge.Threshold != 1.3 {
		t.Fatalf("unexpected surge defaults: %+v", fare.Surge)
	}
}

func TestLoadFareOverridesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	content := `
currency: USD
rates:
  Hatchback:
    base_fare: 2
    per_km: 1
    per_min: 0.5
    booking_fee: 1
  Van:
    base_fare: 5
    per_km: 2
    per_min: 1
    booking_fee: 2
surge:
  policy: none
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	fare, err := LoadFare(path)
	if err != nil {
		t.Fatalf("LoadFare: %v", err)
	}
	if fare.Currency != "USD" {
		t.Errorf("currency = %s", fare.Currency)
	}
	if fare.Rates["Hatchback"].BaseFare != 2 {
		t.Errorf("Hatchback not overridden: %+v", fare.Rates["Hatchback"])
	}
	if _, ok := fare.Rates["Van"]; !ok {
		t.Error("expected Van to be added")
	}
	if _, ok := fare.Rates["SUV"]; !ok {
		t.Error("expected SUV default to survive a partial file")
	}
	if fare.Surge.Policy != "none" || fare.Surge.Max != 1.8 {
		t.Errorf("unexpected surge: %+v", fare.Surge)
	}
}

func writeRateCard(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rates.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadFareClassNamesIgnoreCase(t *testing.T) {
	path := writeRateCard(t, `
default_class: sedan
rates:
  hatchback:
    per_km: 9
  SEDAN:
    booking_fee: 0
`)
	fare, err := LoadFare(path)
	if err != nil {
		t.Fatalf("LoadFare: %v", err)
	}
	if _, ok := fare.Rates["hatchback"]; ok {
		t.Fatal("lowercase class added as a second entry")
	}
	if len(fare.Rates) != len(DefaultFare().Rates) {
		t.Fatalf("rates = %v", fare.Rates)
	}
	if h := fare.Rates["Hatchback"]; h.PerKm != 9 {
		t.Fatalf("Hatchback per_km = %v, want 9", h.PerKm)
	}
	if fare.DefaultClass != "Sedan" {
		t.Fatalf("default class = %q, want Sedan", fare.DefaultClass)
	}
	if s := fare.Rates["Sedan"]; s.BookingFee != 0 || s.BaseFare != 40 {
		t.Fatalf("Sedan = %+v, want explicit zero fee and default base", s)
	}
}

func TestLoadFarePartialRateKeepsDefaults(t *testing.T) {
	fare, err := LoadFare(writeRateCard(t, "rates:\n  Hatchback:\n    per_km: 12\n"))
	if err != nil {
		t.Fatalf("LoadFare: %v", err)
	}
	want := RateConfig{BaseFare: 30, PerKm: 12, PerMin: 1, BookingFee: 10}
	if got := fare.Rates["Hatchback"]; got != want {
		t.Fatalf("Hatchback = %+v, want %+v", got, want)
	}
}

func TestValidateDefaultClassIgnoresCase(t *testing.T) {
	cfg := Config{Fare: DefaultFare()}
	cfg.Fare.DefaultClass = "suv"
	cfg.Auth.Provider = "jwt"
	cfg.Auth.JWT.Secret = "s3cret"
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cfg.Fare.DefaultClass = "Rickshaw"
	if err := cfg.validate(); err == nil {
		t.Fatal("expected error for unknown default class")
	}
}

func TestLoadFareBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	if err := os.WriteFile(path, []byte("rates: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFare(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadValidatesAuthProvider(t *testing.T) {
	t.Setenv("DRIVEBOOK_AUTH_PROVIDER", "jwt")
	t.Setenv("DRIVEBOOK_JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for jwt provider without secret")
	}

	t.Setenv("DRIVEBOOK_JWT_SECRET", "s3cret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("addr = %s", cfg.HTTP.Addr)
	}

	t.Setenv("DRIVEBOOK_AUTH_PROVIDER", "firebase")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for firebase provider without project id")
	}
}

func TestEnvList(t *testing.T) {
	t.Setenv("DRIVEBOOK_CORS_ORIGINS", " https://a.example , ,https://b.example")
	got := envList("DRIVEBOOK_CORS_ORIGINS", nil)
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("envList = %v", got)
	}
}
