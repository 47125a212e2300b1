package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file into the process environment if present,
// grounded on Insightify's config.Load (godotenv.Load, error ignored —
// its absence is normal, not exceptional). Values already set in the
// real environment are never overwritten, matching godotenv.Load's own
// semantics so a deployed instance is never surprised by a stray .env.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// EnvOverrides holds the two environment overrides of spec.md §6.5.
type EnvOverrides struct {
	MaxParallel           int
	WorkerIdleTimeout     time.Duration
	MaxParallelSet        bool
	WorkerIdleTimeoutSet  bool
}

// LoadEnvOverrides reads MAX_PARALLEL (positive integer) and
// WORKER_LIMIT_TIMEOUT_MS (non-negative integer, milliseconds) from the
// process environment.
func LoadEnvOverrides() (EnvOverrides, error) {
	var out EnvOverrides

	if raw := os.Getenv("MAX_PARALLEL"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return out, fmt.Errorf("config: MAX_PARALLEL must be a positive integer, got %q", raw)
		}
		out.MaxParallel = n
		out.MaxParallelSet = true
	}

	if raw := os.Getenv("WORKER_LIMIT_TIMEOUT_MS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return out, fmt.Errorf("config: WORKER_LIMIT_TIMEOUT_MS must be a non-negative integer, got %q", raw)
		}
		out.WorkerIdleTimeout = time.Duration(n) * time.Millisecond
		out.WorkerIdleTimeoutSet = true
	}

	return out, nil
}
