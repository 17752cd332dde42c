package paagrab

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paagrab.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
language: fr
region: fr
click_budget: 8
pause_min: 5s
pause_max: 8s
captcha:
  service: 2captcha
  key: k-123
output: out.csv
`)
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Language != "fr" || cfg.Region != "fr" {
		t.Errorf("locale = %s/%s", cfg.Language, cfg.Region)
	}
	if cfg.ClickBudget != 8 {
		t.Errorf("click budget = %d", cfg.ClickBudget)
	}
	if cfg.PauseMin != 5*time.Second || cfg.PauseMax != 8*time.Second {
		t.Errorf("pause = %v/%v", cfg.PauseMin, cfg.PauseMax)
	}
	if cfg.Captcha.Key != "k-123" {
		t.Errorf("captcha key = %q", cfg.Captcha.Key)
	}
	// Unset fields still get defaults.
	if cfg.CheckpointPath != ".checkpoint.json" || cfg.CheckpointEvery != 5 {
		t.Errorf("checkpoint defaults = %q/%d", cfg.CheckpointPath, cfg.CheckpointEvery)
	}
	if cfg.AbortThreshold != 3 {
		t.Errorf("abort threshold = %d", cfg.AbortThreshold)
	}
}

func TestConfigLocalePreset(t *testing.T) {
	path := writeConfig(t, "locale: br\n")
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Language != "pt" || cfg.Region != "br" {
		t.Errorf("locale = %s/%s, want pt/br", cfg.Language, cfg.Region)
	}
}

func TestConfigUnknownLocale(t *testing.T) {
	path := writeConfig(t, "locale: atlantis\n")
	if _, err := LoadConfigFile(path); err == nil {
		t.Error("unknown locale accepted")
	}
}

func TestConfigInvalidMode(t *testing.T) {
	path := writeConfig(t, "mode: invisible\n")
	if _, err := LoadConfigFile(path); err == nil {
		t.Error("invalid mode accepted")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Language != "en" || cfg.Region != "us" {
		t.Errorf("locale = %s/%s", cfg.Language, cfg.Region)
	}
	if cfg.ClickBudget != 15 {
		t.Errorf("click budget = %d", cfg.ClickBudget)
	}
	if cfg.PauseMin != 10*time.Second || cfg.PauseMax != 20*time.Second {
		t.Errorf("pause = %v/%v", cfg.PauseMin, cfg.PauseMax)
	}
	if cfg.Mode != "headless" {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if cfg.Output != "results.json" {
		t.Errorf("output = %q", cfg.Output)
	}
}

func TestPauseMaxNeverBelowMin(t *testing.T) {
	path := writeConfig(t, "pause_min: 30s\npause_max: 5s\n")
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PauseMax < cfg.PauseMin {
		t.Errorf("pause_max %v < pause_min %v", cfg.PauseMax, cfg.PauseMin)
	}
}
