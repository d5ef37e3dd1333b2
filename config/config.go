package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/missdeer/agentbridge/budget"
	"github.com/missdeer/agentbridge/message"
)

const (
	DefaultListen          = ":8080"
	DefaultBind            = "127.0.0.1"
	DefaultUpstreamTimeout = 5 * time.Minute
	DefaultCLIPath         = "claude"
	DefaultCLITimeout      = 5 * time.Minute
)

type ModelMapping map[string]string

type Upstream struct {
	Name            string       `yaml:"name"`
	Vendor          string       `yaml:"vendor"`
	BaseURL         string       `yaml:"base_url"`
	Token           string       `yaml:"token"`
	Weight          int          `yaml:"weight"`
	Enabled         *bool        `yaml:"enabled"`
	ModelMappings   ModelMapping `yaml:"model_mappings"`
	AvailableModels []string     `yaml:"available_models"`
	// RequestCompression compresses outbound bodies: gzip, zstd or br.
	RequestCompression string `yaml:"request_compression"`
	// HeartbeatInterval enables a periodic minimal request; zero disables it.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

func (u *Upstream) MapModel(model string) string {
	if u.ModelMappings == nil {
		return model
	}
	if mapped, ok := u.ModelMappings[model]; ok {
		return mapped
	}
	return model
}

func (u *Upstream) SupportsModel(model string) bool {
	if len(u.AvailableModels) == 0 {
		return true
	}
	for _, m := range u.AvailableModels {
		if m == model {
			return true
		}
	}
	return false
}

// IsEnabled reports whether the upstream takes traffic. Unset means enabled.
func (u *Upstream) IsEnabled() bool {
	return u.Enabled == nil || *u.Enabled
}

// GetVendor returns the wire format the upstream speaks; anthropic when unset.
func (u *Upstream) GetVendor() message.Vendor {
	if u.Vendor == "" {
		return message.VendorAnthropic
	}
	v, err := message.ParseVendor(u.Vendor)
	if err != nil {
		return message.VendorAnthropic
	}
	return v
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// CLIConfig configures the emulated CLI backend.
type CLIConfig struct {
	Path         string        `yaml:"path"`
	Timeout      time.Duration `yaml:"timeout"`
	DefaultModel string        `yaml:"default_model"`
	ExtraArgs    []string      `yaml:"extra_args"`
	WorkDir      string        `yaml:"work_dir"`
	ImageDir     string        `yaml:"image_dir"`
	// Env entries (KEY=value) are added to the inherited environment.
	Env []string `yaml:"env"`
}

// PricingConfig overrides the budget price table. Prices are USD per
// million output tokens; zero values keep the built-in defaults.
type PricingConfig struct {
	Default    float64            `yaml:"default"`
	Ceiling    float64            `yaml:"ceiling"`
	Multiplier float64            `yaml:"multiplier"`
	Models     map[string]float64 `yaml:"models"`
}

// Translator builds a budget translator from the built-in table with these
// overrides applied.
func (p PricingConfig) Translator() *budget.Translator {
	return budget.New(
		budget.WithModelPrices(p.Models),
		budget.WithDefaultPrice(p.Default),
		budget.WithMultiplier(p.Multiplier),
		budget.WithCeiling(p.Ceiling),
	)
}

type Config struct {
	Bind                   string        `yaml:"bind"`
	Listen                 string        `yaml:"listen"`
	UpstreamRequestTimeout time.Duration `yaml:"upstream_request_timeout"`
	Log                    LogConfig     `yaml:"log"`
	Upstreams              []Upstream    `yaml:"upstreams"`
	CLI                    CLIConfig     `yaml:"cli"`
	Pricing                PricingConfig `yaml:"pricing"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML config and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}

	if cfg.Bind == "" {
		cfg.Bind = DefaultBind
	}

	if cfg.UpstreamRequestTimeout <= 0 {
		cfg.UpstreamRequestTimeout = DefaultUpstreamTimeout
	}

	for i := range cfg.Upstreams {
		u := &cfg.Upstreams[i]
		if u.Weight <= 0 {
			u.Weight = 1
		}
		if u.Vendor != "" {
			v, err := message.ParseVendor(u.Vendor)
			if err != nil {
				return nil, fmt.Errorf("upstream %q: %w", u.Name, err)
			}
			if v == message.VendorCLI {
				return nil, fmt.Errorf("upstream %q: the cli vendor is configured under cli:, not upstreams", u.Name)
			}
		}
		switch u.RequestCompression {
		case "", "gzip", "zstd", "br":
		default:
			return nil, fmt.Errorf("upstream %q: unsupported request_compression %q", u.Name, u.RequestCompression)
		}
	}

	if cfg.CLI.Path == "" {
		cfg.CLI.Path = DefaultCLIPath
	}
	if cfg.CLI.Timeout <= 0 {
		cfg.CLI.Timeout = DefaultCLITimeout
	}

	return &cfg, nil
}
