package paagrab

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level run configuration.
type Config struct {
	// Language is the interface language (hl parameter). Default: "en".
	Language string `yaml:"language"`

	// Region is the result region (gl parameter). Default: "us".
	Region string `yaml:"region"`

	// Locale names a language/region preset. When set it overrides
	// Language and Region.
	Locale string `yaml:"locale"`

	// Mode selects the browser mode: headless | headful. Headful is the
	// escape hatch for solving challenges by hand. Default: headless.
	Mode string `yaml:"mode"`

	// UserAgent overrides the browser user agent when non-empty.
	UserAgent string `yaml:"user_agent"`

	// ClickBudget caps expansions per query. Default: 15.
	ClickBudget int `yaml:"click_budget"`

	// PauseMin/PauseMax bound the randomized pause between queries.
	// Defaults: 10s / 20s.
	PauseMin time.Duration `yaml:"pause_min"`
	PauseMax time.Duration `yaml:"pause_max"`

	// Resume restores progress from the checkpoint file and skips
	// completed queries.
	Resume bool `yaml:"resume"`

	// CheckpointPath is the progress snapshot location. Default:
	// ".checkpoint.json".
	CheckpointPath string `yaml:"checkpoint_path"`

	// CheckpointEvery is the persist cadence in completed queries.
	// Default: 5.
	CheckpointEvery int `yaml:"checkpoint_every"`

	// AbortThreshold is the consecutive unresolved interference count
	// that ends the run. Default: 3.
	AbortThreshold int `yaml:"abort_threshold"`

	// ManualWait bounds the wait for a hand-solved challenge. Default: 5m.
	ManualWait time.Duration `yaml:"manual_wait"`

	// ProbeInterval between challenge re-checks during the manual wait.
	// Default: 5s.
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// Captcha configures the solving service. An empty key disables the
	// API strategy; the manual wait still applies.
	Captcha CaptchaConfig `yaml:"captcha"`

	// Output is the export path; .json and .csv are understood. A tabular
	// export always gets a JSON sibling. Default: "results.json".
	Output string `yaml:"output"`

	// ArchivePath enables the cross-run sqlite archive when non-empty.
	ArchivePath string `yaml:"archive_path"`

	// StatusAddr enables the progress HTTP endpoint when non-empty,
	// e.g. "127.0.0.1:8641".
	StatusAddr string `yaml:"status_addr"`
}

// CaptchaConfig selects a solving service.
type CaptchaConfig struct {
	Service string `yaml:"service"` // 2captcha | rucaptcha | capguru
	Key     string `yaml:"key"`
}

// LoadConfigFile reads a YAML configuration file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() error {
	if c.Locale != "" {
		loc, ok := LookupLocale(c.Locale)
		if !ok {
			return fmt.Errorf("config: unknown locale %q", c.Locale)
		}
		c.Language = loc.Language
		c.Region = loc.Region
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.Region == "" {
		c.Region = "us"
	}
	if c.Mode == "" {
		c.Mode = "headless"
	}
	if c.Mode != "headless" && c.Mode != "headful" {
		return fmt.Errorf("config: invalid mode %q", c.Mode)
	}
	if c.ClickBudget <= 0 {
		c.ClickBudget = 15
	}
	if c.PauseMin <= 0 {
		c.PauseMin = 10 * time.Second
	}
	if c.PauseMax < c.PauseMin {
		c.PauseMax = c.PauseMin + 10*time.Second
	}
	if c.CheckpointPath == "" {
		c.CheckpointPath = ".checkpoint.json"
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = 5
	}
	if c.AbortThreshold <= 0 {
		c.AbortThreshold = 3
	}
	if c.ManualWait <= 0 {
		c.ManualWait = 5 * time.Minute
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 5 * time.Second
	}
	if c.Output == "" {
		c.Output = "results.json"
	}
	return nil
}
