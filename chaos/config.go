package chaos

import (
	"os"
	"strconv"
)

// Environment variables read once at construction time.
const (
	EnvEnabled  = "CHAOS_ENABLED"
	EnvFailRate = "CHAOS_FAIL_RATE"
	EnvSeed     = "CHAOS_SEED"
	EnvScope    = "CHAOS_SCOPE"
	EnvAppEnv   = "APP_ENV"
)

const envProduction = "production"

// Scope is the category of operation an injector instance is permitted to
// fail. Scopes form a containment order, not an equality check: an instance
// scoped to all_writes also covers shadow_write_only, and one scoped to
// reads covers everything.
type Scope string

const (
	ScopeShadowWriteOnly Scope = "shadow_write_only"
	ScopeAllWrites       Scope = "all_writes"
	ScopeReads           Scope = "reads"
)

func (s Scope) rank() int {
	switch s {
	case ScopeShadowWriteOnly:
		return 0
	case ScopeAllWrites:
		return 1
	case ScopeReads:
		return 2
	}
	return -1
}

func (s Scope) Valid() bool {
	return s.rank() >= 0
}

// Covers reports whether an instance configured with s may fail a check
// against target.
func (s Scope) Covers(target Scope) bool {
	tr := target.rank()
	return tr >= 0 && s.rank() >= tr
}

// Config is fixed at construction; an Injector never reloads it.
type Config struct {
	// Enabled is the master switch. Defaults to false.
	Enabled bool
	// FailRate is the probability in [0,1] that a covered check fails.
	FailRate float64
	// Seed makes the decision sequence reproducible. Empty means
	// non-deterministic.
	Seed string
	// Scope limits which operation categories this instance may fail.
	Scope Scope
	// Environment names the runtime environment ("production" arms the
	// construction guard). Filled from APP_ENV when left empty.
	Environment string
}

// Overrides are merged over environment-derived configuration by FromEnv;
// only non-nil fields win.
type Overrides struct {
	Enabled  *bool
	FailRate *float64
	Seed     *string
	Scope    *Scope
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func configFromEnv() Config {
	enabled, err := strconv.ParseBool(getEnvOrDefault(EnvEnabled, "false"))
	if err != nil {
		enabled = false
	}

	return Config{
		Enabled:     enabled,
		FailRate:    parseRate(getEnvOrDefault(EnvFailRate, "0")),
		Seed:        os.Getenv(EnvSeed),
		Scope:       normalizeScope(Scope(getEnvOrDefault(EnvScope, string(ScopeShadowWriteOnly)))),
		Environment: os.Getenv(EnvAppEnv),
	}
}

// parseRate degrades unparseable or out-of-range rates to 0 rather than
// failing construction.
func parseRate(raw string) float64 {
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return clampRate(rate)
}

func clampRate(rate float64) float64 {
	if rate < 0 || rate > 1 {
		return 0
	}
	return rate
}

func normalizeScope(s Scope) Scope {
	if !s.Valid() {
		return ScopeShadowWriteOnly
	}
	return s
}
