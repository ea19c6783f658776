// Package config loads brush settings from YAML files.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// File names searched by Load.
const (
	ProjectFile = ".brush.yaml"
	UserDir     = ".brush"
	UserFile    = "config.yaml"
)

// Config holds every tunable setting of the brush tools.
type Config struct {
	Limits LimitsConfig `yaml:"limits"`
	Parser ParserConfig `yaml:"parser"`
	Canvas CanvasConfig `yaml:"canvas"`
	Output OutputConfig `yaml:"output"`

	// Source is the file the configuration was read from; empty for defaults.
	Source string `yaml:"-"`
}

// LimitsConfig bounds script execution. Zero disables a limit.
type LimitsConfig struct {
	MaxSteps     int64 `yaml:"maxSteps"`
	MaxCallDepth int   `yaml:"maxCallDepth"`
	TimeoutMs    int64 `yaml:"timeoutMs"`
}

// ParserConfig configures the parser.
type ParserConfig struct {
	MaxDepth int `yaml:"maxDepth"`
}

// CanvasConfig configures the terminal renderer.
type CanvasConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Glyph  string `yaml:"glyph"`
}

// OutputConfig configures human-facing output.
type OutputConfig struct {
	// Color is one of "auto", "always" or "never".
	Color string `yaml:"color"`
}

// Colour modes accepted by OutputConfig.Color.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

const maxCanvasSide = 4096

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Limits: LimitsConfig{
			MaxSteps:     1_000_000,
			MaxCallDepth: 2048,
			TimeoutMs:    5000,
		},
		Parser: ParserConfig{MaxDepth: 512},
		Canvas: CanvasConfig{Width: 64, Height: 32, Glyph: "  "},
		Output: OutputConfig{Color: ColorAuto},
	}
}

// Timeout returns the configured wall-clock limit.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Limits.TimeoutMs) * time.Millisecond
}

// Error reports a configuration file that could not be used.
type Error struct {
	Path   string
	Issues []string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Path, e.Err)
	}
	var b strings.Builder
	if e.Path == "" {
		b.WriteString("config is invalid:")
	} else {
		fmt.Fprintf(&b, "config: %s is invalid:", e.Path)
	}
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Load reads configuration with this precedence: projectDir/.brush.yaml,
// then ~/.brush/config.yaml, then Default. A file that exists but cannot be
// parsed is an error; missing files are skipped.
func Load(projectDir string) (*Config, error) {
	candidates := []string{filepath.Join(projectDir, ProjectFile)}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, UserDir, UserFile))
	}

	for _, path := range candidates {
		cfg, err := LoadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Default(), nil
}

// LoadFile reads one YAML file. Keys it omits keep their default values;
// unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	defer file.Close()

	cfg, err := Decode(file)
	if err != nil {
		var cfgErr *Error
		if errors.As(err, &cfgErr) {
			cfgErr.Path = path
			return nil, cfgErr
		}
		return nil, &Error{Path: path, Err: err}
	}
	cfg.Source = path
	return cfg, nil
}

// Decode parses YAML from r over the defaults and validates the result.
// An empty document yields the defaults.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var issues []string
	if c.Limits.MaxSteps < 0 {
		issues = append(issues, "limits.maxSteps must not be negative")
	}
	if c.Limits.MaxCallDepth < 0 {
		issues = append(issues, "limits.maxCallDepth must not be negative")
	}
	if c.Limits.TimeoutMs < 0 {
		issues = append(issues, "limits.timeoutMs must not be negative")
	}
	if c.Parser.MaxDepth < 0 {
		issues = append(issues, "parser.maxDepth must not be negative")
	}
	if c.Canvas.Width <= 0 || c.Canvas.Width > maxCanvasSide {
		issues = append(issues, fmt.Sprintf("canvas.width must be between 1 and %d", maxCanvasSide))
	}
	if c.Canvas.Height <= 0 || c.Canvas.Height > maxCanvasSide {
		issues = append(issues, fmt.Sprintf("canvas.height must be between 1 and %d", maxCanvasSide))
	}
	if c.Canvas.Glyph == "" {
		issues = append(issues, "canvas.glyph must not be empty")
	}
	switch c.Output.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		issues = append(issues, fmt.Sprintf("output.color must be %q, %q or %q, got %q", ColorAuto, ColorAlways, ColorNever, c.Output.Color))
	}
	if len(issues) > 0 {
		return &Error{Issues: issues}
	}
	return nil
}

// YAML renders the configuration as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
