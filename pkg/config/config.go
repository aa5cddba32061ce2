// Package config loads the compiler settings file.
package config

import (
	"os"
	"time"

	"github.com/chazu/opgraph/pkg/engine"
	"github.com/chazu/opgraph/pkg/link"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config holds the settings of one compile. Fields missing from a file keep
// their Default values.
type Config struct {
	// Prune drops nodes not reachable from the compiled outputs before
	// linking.
	Prune bool `yaml:"prune"`

	// Verify checks every linked entry and the finished program.
	Verify bool `yaml:"verify"`

	// Debug turns on builder and linker logging.
	Debug bool `yaml:"debug"`

	// EvalTimeout bounds source evaluation, as a duration such as "5s".
	EvalTimeout string `yaml:"eval-timeout"`

	// Outputs restricts compilation to these named outputs, in this
	// order. Empty means every output, in source order.
	Outputs []string `yaml:"outputs"`

	timeout time.Duration
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Prune:       true,
		Verify:      true,
		EvalTimeout: engine.EvalTimeout.String(),
		timeout:     engine.EvalTimeout,
	}
}

// Parse overlays the YAML document data onto c and validates the result.
func (c *Config) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, "config: invalid yaml")
	}
	return c.Validate()
}

// Validate checks the settings and caches the parsed timeout.
func (c *Config) Validate() error {
	d, err := time.ParseDuration(c.EvalTimeout)
	if err != nil {
		return errors.Wrapf(err, "config: eval-timeout %q", c.EvalTimeout)
	}
	if d <= 0 {
		return errors.Errorf("config: eval-timeout must be positive, got %s", d)
	}
	c.timeout = d

	seen := make(map[string]bool, len(c.Outputs))
	for _, name := range c.Outputs {
		if name == "" {
			return errors.New("config: empty output name")
		}
		if seen[name] {
			return errors.Errorf("config: output %q listed twice", name)
		}
		seen[name] = true
	}
	return nil
}

// Load reads the file at path on top of the default settings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: can't read %s", path)
	}
	c := Default()
	if err := c.Parse(data); err != nil {
		return nil, errors.Wrapf(err, "config: %s", path)
	}
	return c, nil
}

// Timeout returns the evaluation timeout.
func (c *Config) Timeout() time.Duration {
	if c.timeout <= 0 {
		return engine.EvalTimeout
	}
	return c.timeout
}

// Engine returns an engine configured with these settings.
func (c *Config) Engine(logf func(format string, v ...interface{})) *engine.Engine {
	eng := engine.NewEngine()
	eng.Timeout = c.Timeout()
	eng.Debug = c.Debug
	eng.Logf = logf
	return eng
}

// LinkOptions returns the linker options for these settings.
func (c *Config) LinkOptions(logf func(format string, v ...interface{})) link.Options {
	return link.Options{
		Verify: c.Verify,
		Debug:  c.Debug,
		Logf:   logf,
	}
}
