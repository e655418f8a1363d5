// Package config loads the wikilift run configuration.
//
// Configuration is YAML on disk, strict-decoded (unknown fields are
// typos) and validated against an embedded CUE schema before any value
// is parsed. An absent file yields the built-in defaults; a present
// file overrides only the fields it sets.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/chaban-mb/wikilift/internal/convert"
	"github.com/chaban-mb/wikilift/internal/pace"
	"github.com/chaban-mb/wikilift/internal/resolve"
)

//go:embed schema.cue
var schemaCUE string

var configPath = cue.ParsePath("#Config")

// Error code constants.
const (
	ErrCodeRead   = "C001" // File read error
	ErrCodeParse  = "C002" // YAML parse error
	ErrCodeSchema = "C003" // Schema violation
	ErrCodeValue  = "C004" // Value parse error (durations)
)

// Error is a configuration loading failure with a machine-readable
// code.
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// Config is the fully resolved run configuration.
type Config struct {
	// Channels maps pacing channel names to their budgets.
	Channels map[string]pace.ChannelConfig

	// Canonical is the label typed into the selector's search field.
	Canonical string

	// Accepted are the label variants recognized as the target
	// classification.
	Accepted []string

	// DialogWait, CloseWait, RecoveryWait bound the converter's waits.
	DialogWait   time.Duration
	CloseWait    time.Duration
	RecoveryWait time.Duration

	// Settle is the post-mutation observation delay.
	Settle time.Duration

	// StorePath locates the audit store database file.
	StorePath string
}

// Default returns the built-in configuration.
func Default() Config {
	cc := convert.DefaultConfig()
	return Config{
		Channels: map[string]pace.ChannelConfig{
			resolve.Channel: {Interval: time.Second, Lanes: 1},
		},
		Canonical:    cc.CanonicalLabel,
		Accepted:     cc.AcceptedLabels,
		DialogWait:   cc.DialogDeadline,
		CloseWait:    cc.CloseDeadline,
		RecoveryWait: cc.RecoveryDeadline,
		Settle:       cc.Settle,
		StorePath:    "wikilift.db",
	}
}

// ConvertConfig projects the converter's slice of the configuration.
func (c Config) ConvertConfig() convert.Config {
	return convert.Config{
		CanonicalLabel:   c.Canonical,
		AcceptedLabels:   c.Accepted,
		DialogDeadline:   c.DialogWait,
		CloseDeadline:    c.CloseWait,
		RecoveryDeadline: c.RecoveryWait,
		Settle:           c.Settle,
	}
}

// fileConfig is the on-disk YAML shape. Durations are strings so the
// schema can validate their format before parsing.
type fileConfig struct {
	Channels map[string]fileChannel `yaml:"channels,omitempty"`
	Labels   *fileLabels            `yaml:"labels,omitempty"`
	Waits    *fileWaits             `yaml:"waits,omitempty"`
	Settle   string                 `yaml:"settle,omitempty"`
	Store    *fileStore             `yaml:"store,omitempty"`
}

type fileChannel struct {
	Interval string `yaml:"interval,omitempty"`
	Lanes    int    `yaml:"lanes,omitempty"`
}

type fileLabels struct {
	Canonical string   `yaml:"canonical,omitempty"`
	Accepted  []string `yaml:"accepted,omitempty"`
}

type fileWaits struct {
	Dialog   string `yaml:"dialog,omitempty"`
	Close    string `yaml:"close,omitempty"`
	Recovery string `yaml:"recovery,omitempty"`
}

type fileStore struct {
	Path string `yaml:"path,omitempty"`
}

// Load reads, validates, and resolves the configuration at path.
// A missing file is not an error: the defaults apply unchanged.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, &Error{Code: ErrCodeRead, Message: fmt.Sprintf("read config %s", path), Err: err}
	}
	return Parse(data)
}

// Parse validates and resolves raw YAML configuration bytes.
func Parse(data []byte) (Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Default(), nil
	}
	if err := validateSchema(data); err != nil {
		return Config{}, err
	}

	// Strict decode catches field typos the schema's open maps cannot.
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return Config{}, &Error{Code: ErrCodeParse, Message: "parse config YAML", Err: err}
	}

	return resolveConfig(fc)
}

// validateSchema unifies the raw document with the embedded CUE schema.
func validateSchema(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return &Error{Code: ErrCodeParse, Message: "parse config YAML", Err: err}
	}
	if raw == nil {
		return nil
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return &Error{Code: ErrCodeSchema, Message: "compile embedded schema", Err: err}
	}
	def := schema.LookupPath(configPath)
	if err := def.Err(); err != nil {
		return &Error{Code: ErrCodeSchema, Message: "embedded schema has no #Config", Err: err}
	}

	unified := def.Unify(ctx.Encode(raw))
	if err := unified.Validate(); err != nil {
		return &Error{Code: ErrCodeSchema, Message: "config violates schema", Err: err}
	}
	return nil
}

// resolveConfig merges the file over the defaults.
func resolveConfig(fc fileConfig) (Config, error) {
	cfg := Default()

	for name, ch := range fc.Channels {
		resolved := cfg.Channels[name]
		if ch.Interval != "" {
			d, err := parseDuration("channels."+name+".interval", ch.Interval)
			if err != nil {
				return Config{}, err
			}
			resolved.Interval = d
		}
		if ch.Lanes > 0 {
			resolved.Lanes = ch.Lanes
		}
		cfg.Channels[name] = resolved
	}

	if fc.Labels != nil {
		if fc.Labels.Canonical != "" {
			cfg.Canonical = fc.Labels.Canonical
		}
		if len(fc.Labels.Accepted) > 0 {
			cfg.Accepted = fc.Labels.Accepted
		}
	}

	if fc.Waits != nil {
		for _, w := range []struct {
			field string
			raw   string
			dst   *time.Duration
		}{
			{"waits.dialog", fc.Waits.Dialog, &cfg.DialogWait},
			{"waits.close", fc.Waits.Close, &cfg.CloseWait},
			{"waits.recovery", fc.Waits.Recovery, &cfg.RecoveryWait},
		} {
			if w.raw == "" {
				continue
			}
			d, err := parseDuration(w.field, w.raw)
			if err != nil {
				return Config{}, err
			}
			*w.dst = d
		}
	}

	if fc.Settle != "" {
		d, err := parseDuration("settle", fc.Settle)
		if err != nil {
			return Config{}, err
		}
		cfg.Settle = d
	}

	if fc.Store != nil && fc.Store.Path != "" {
		cfg.StorePath = fc.Store.Path
	}

	return cfg, nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &Error{Code: ErrCodeValue, Message: fmt.Sprintf("invalid duration in %s", field), Err: err}
	}
	if d < 0 {
		return 0, &Error{Code: ErrCodeValue, Message: fmt.Sprintf("negative duration in %s", field)}
	}
	return d, nil
}
