package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/riskdesk/logging"
	"github.com/rustyeddy/riskdesk/terminal"
)

// PasswordEnv overrides terminal.password so it can stay out of the file.
const PasswordEnv = "RISKDESK_PASSWORD"

const (
	TerminalSim    = "sim"
	TerminalBridge = "bridge"
)

// Config is the complete riskdesk configuration.
type Config struct {
	LogLevel  string            `json:"log_level" yaml:"log_level"`
	Terminal  TerminalConfig    `json:"terminal" yaml:"terminal"`
	Risk      RiskConfig        `json:"risk" yaml:"risk"`
	Execution ExecutionConfig   `json:"execution" yaml:"execution"`
	Baskets   map[string]Basket `json:"baskets" yaml:"baskets"`
	Journal   JournalConfig     `json:"journal" yaml:"journal"`
	Metrics   MetricsConfig     `json:"metrics" yaml:"metrics"`
	Sim       SimConfig         `json:"sim" yaml:"sim"`
}

// TerminalConfig selects the terminal binding and how to connect to it.
type TerminalConfig struct {
	Kind        string   `json:"kind" yaml:"kind"` // "sim" or "bridge"
	BridgeURL   string   `json:"bridge_url,omitempty" yaml:"bridge_url,omitempty"`
	RateLimit   float64  `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"` // bridge calls per second
	Path        string   `json:"path,omitempty" yaml:"path,omitempty"`
	Login       uint64   `json:"login,omitempty" yaml:"login,omitempty"`
	Password    string   `json:"password,omitempty" yaml:"password,omitempty"`
	Server      string   `json:"server,omitempty" yaml:"server,omitempty"`
	MaxAttempts int      `json:"max_attempts" yaml:"max_attempts"`
	RetryDelay  Duration `json:"retry_delay" yaml:"retry_delay"`
	SettleDelay Duration `json:"settle_delay" yaml:"settle_delay"`
}

// RiskConfig holds the default risk budget. Percent is of account balance:
// 0.25 means a quarter of one percent.
type RiskConfig struct {
	Percent         float64 `json:"percent" yaml:"percent"`
	MaxPercent      float64 `json:"max_percent,omitempty" yaml:"max_percent,omitempty"`
	StrictMinVolume bool    `json:"strict_min_volume,omitempty" yaml:"strict_min_volume,omitempty"`
}

type ExecutionConfig struct {
	Magic            uint64   `json:"magic" yaml:"magic"`
	Deviation        int      `json:"deviation" yaml:"deviation"`
	FreshTickTimeout Duration `json:"fresh_tick_timeout" yaml:"fresh_tick_timeout"`
	Comment          string   `json:"comment" yaml:"comment"`
}

// Basket is a named list of legs opened together at one risk percent.
type Basket struct {
	Comment string  `json:"comment" yaml:"comment"`
	Percent float64 `json:"percent,omitempty" yaml:"percent,omitempty"` // overrides risk.percent
	Legs    []Leg   `json:"legs" yaml:"legs"`
}

type Leg struct {
	Symbol     string `json:"symbol" yaml:"symbol"`
	Side       string `json:"side" yaml:"side"`
	StopPoints int    `json:"stop_points" yaml:"stop_points"`
}

type JournalConfig struct {
	Type string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

type MetricsConfig struct {
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty"`
}

// SimConfig seeds the simulated terminal.
type SimConfig struct {
	Login    uint64      `json:"login" yaml:"login"`
	Currency string      `json:"currency" yaml:"currency"`
	Balance  float64     `json:"balance" yaml:"balance"`
	Symbols  []SimSymbol `json:"symbols" yaml:"symbols"`
}

type SimSymbol struct {
	Name         string  `json:"name" yaml:"name"`
	Hidden       bool    `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Digits       int     `json:"digits" yaml:"digits"`
	Point        float64 `json:"point" yaml:"point"`
	ContractSize float64 `json:"contract_size" yaml:"contract_size"`
	TickValue    float64 `json:"tick_value" yaml:"tick_value"`
	StopsLevel   int     `json:"stops_level" yaml:"stops_level"`
	VolumeMin    float64 `json:"volume_min" yaml:"volume_min"`
	VolumeMax    float64 `json:"volume_max" yaml:"volume_max"`
	VolumeStep   float64 `json:"volume_step" yaml:"volume_step"`
	Bid          float64 `json:"bid,omitempty" yaml:"bid,omitempty"`
	Ask          float64 `json:"ask,omitempty" yaml:"ask,omitempty"`
}

func (s SimSymbol) Info() terminal.SymbolInfo {
	return terminal.SymbolInfo{
		Name:         s.Name,
		Visible:      !s.Hidden,
		Digits:       s.Digits,
		Point:        s.Point,
		ContractSize: s.ContractSize,
		TickValue:    s.TickValue,
		StopsLevel:   s.StopsLevel,
		VolumeMin:    s.VolumeMin,
		VolumeMax:    s.VolumeMax,
		VolumeStep:   s.VolumeStep,
	}
}

// Profile is the terminal connection profile, with the password taken from
// RISKDESK_PASSWORD when that is set.
func (c *Config) Profile() terminal.ConnectionProfile {
	p := terminal.ConnectionProfile{
		Path:     c.Terminal.Path,
		Login:    c.Terminal.Login,
		Password: c.Terminal.Password,
		Server:   c.Terminal.Server,
	}
	if pw := os.Getenv(PasswordEnv); pw != "" {
		p.Password = pw
	}
	return p
}

// BasketNames returns the configured basket names, sorted.
func (c *Config) BasketNames() []string {
	names := make([]string, 0, len(c.Baskets))
	for n := range c.Baskets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadFromFile loads configuration from a YAML or JSON file. Fields the file
// leaves out keep their Default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration as YAML for .yaml/.yml paths, JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	switch c.Terminal.Kind {
	case TerminalSim, TerminalBridge:
	default:
		return fmt.Errorf("terminal.kind must be 'sim' or 'bridge', got %q", c.Terminal.Kind)
	}
	if c.Terminal.MaxAttempts < 1 {
		return fmt.Errorf("terminal.max_attempts must be at least 1")
	}
	if c.Terminal.RetryDelay < 0 || c.Terminal.SettleDelay < 0 {
		return fmt.Errorf("terminal delays must not be negative")
	}
	if c.Terminal.RateLimit < 0 {
		return fmt.Errorf("terminal.rate_limit must not be negative")
	}

	if c.Risk.Percent <= 0 || c.Risk.Percent > 100 {
		return fmt.Errorf("risk.percent must be in (0, 100]")
	}
	if c.Risk.MaxPercent < 0 {
		return fmt.Errorf("risk.max_percent must not be negative")
	}
	if c.Risk.MaxPercent > 0 && c.Risk.Percent > c.Risk.MaxPercent {
		return fmt.Errorf("risk.percent %g exceeds risk.max_percent %g", c.Risk.Percent, c.Risk.MaxPercent)
	}

	if c.Execution.Deviation < 0 {
		return fmt.Errorf("execution.deviation must not be negative")
	}
	if c.Execution.FreshTickTimeout < 0 {
		return fmt.Errorf("execution.fresh_tick_timeout must not be negative")
	}

	for _, name := range c.BasketNames() {
		b := c.Baskets[name]
		if len(b.Legs) == 0 {
			return fmt.Errorf("basket %q has no legs", name)
		}
		if b.Percent < 0 || b.Percent > 100 {
			return fmt.Errorf("basket %q: percent must be in [0, 100]", name)
		}
		for i, leg := range b.Legs {
			if leg.Symbol == "" {
				return fmt.Errorf("basket %q leg %d: symbol is required", name, i)
			}
			if _, err := terminal.ParseOrderType(leg.Side); err != nil {
				return fmt.Errorf("basket %q leg %d: %w", name, i, err)
			}
			if leg.StopPoints <= 0 {
				return fmt.Errorf("basket %q leg %d: stop_points must be positive", name, i)
			}
		}
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv", "sqlite":
		if c.Journal.Path == "" {
			return fmt.Errorf("journal.path required for %s journal", c.Journal.Type)
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if c.Terminal.Kind == TerminalSim {
		if err := c.Sim.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s SimConfig) validate() error {
	if s.Balance <= 0 {
		return fmt.Errorf("sim.balance must be positive")
	}
	if s.Currency == "" {
		return fmt.Errorf("sim.currency is required")
	}
	seen := map[string]bool{}
	for _, sym := range s.Symbols {
		if sym.Name == "" {
			return fmt.Errorf("sim symbol without a name")
		}
		if seen[sym.Name] {
			return fmt.Errorf("sim symbol %s listed twice", sym.Name)
		}
		seen[sym.Name] = true
		if sym.Point <= 0 {
			return fmt.Errorf("sim symbol %s: point must be positive", sym.Name)
		}
		if (sym.Bid != 0 || sym.Ask != 0) && sym.Ask < sym.Bid {
			return fmt.Errorf("sim symbol %s: ask must not be below bid", sym.Name)
		}
	}
	return nil
}

// Duration is a time.Duration written as "500ms" in both YAML and JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}
