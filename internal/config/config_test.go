package config

import "testing"

func TestGetEnvInt(t *testing.T) {
	t.Setenv("FUNNEL_TEST_INT", "7")
	if got := getEnvInt("FUNNEL_TEST_INT", 3); got != 7 {
		t.Errorf("getEnvInt = %d, want 7", got)
	}

	t.Setenv("FUNNEL_TEST_INT", "not a number")
	if got := getEnvInt("FUNNEL_TEST_INT", 3); got != 3 {
		t.Errorf("getEnvInt with garbage = %d, want fallback 3", got)
	}

	t.Setenv("FUNNEL_TEST_INT", "-5")
	if got := getEnvInt("FUNNEL_TEST_INT", 3); got != 3 {
		t.Errorf("getEnvInt with non-positive = %d, want fallback 3", got)
	}

	if got := getEnvInt("FUNNEL_TEST_UNSET", 11); got != 11 {
		t.Errorf("getEnvInt unset = %d, want fallback 11", got)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("FUNNEL_WORKERS", "2")
	t.Setenv("FUNNEL_BREAKDOWN_LIMIT", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != 2 || cfg.BreakdownLimit != 4 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.CacheDir == "" || cfg.LogDir == "" {
		t.Error("cache and log directories should be derived from DATA_PATH")
	}
}
