package app

import (
	"testing"
	"time"

	"github.com/claude/trainctx/internal/config"
)

// TestServiceOptions verifies config values reach the pipeline options.
func TestServiceOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Context.ScanLimit = 7
	cfg.Context.NormalizeExerciseNames = true
	cfg.Context.FetchTimeout = 2 * time.Second
	cfg.Cache.TTL = 0

	opts := ServiceOptions(cfg)
	if opts.Reduce.ScanLimit != 7 || !opts.Reduce.NormalizeNames {
		t.Errorf("Reduce = %+v, want scan 7 normalized", opts.Reduce)
	}
	if opts.FetchTimeout != 2*time.Second {
		t.Errorf("FetchTimeout = %v, want 2s", opts.FetchTimeout)
	}
	if opts.MaxBytes != 16384 {
		t.Errorf("MaxBytes = %d, want 16384", opts.MaxBytes)
	}
	if opts.CacheTTL != 0 {
		t.Errorf("CacheTTL = %v, want 0 (disabled)", opts.CacheTTL)
	}
	if opts.Assemble.DetailCount != 3 || opts.Assemble.SummaryCount != 5 {
		t.Errorf("Assemble = %+v, want 3 detail / 5 summary", opts.Assemble)
	}
}

// TestGateAndStoreOptions verifies the rate gate section maps onto limits and backend.
func TestGateAndStoreOptions(t *testing.T) {
	c := config.Default().RateGate
	c.Backend = "redis"
	c.RedisAddr = "redis:6379"
	c.Hourly = 0

	lim := GateLimits(c)
	if lim.Hourly != 0 || lim.Daily != 100 || lim.OverageMultiplier != 2 {
		t.Errorf("limits = %+v, want 0/100/2", lim)
	}
	kv := KVOptions(c)
	if kv.Backend != "redis" || kv.RedisAddr != "redis:6379" || kv.RedisPrefix != "trainctx:" {
		t.Errorf("kv options = %+v", kv)
	}
}
