// Package config holds the settings of one compilation run. Values come from
// defaults, an optional YAML or TOML file, PREVC_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"

	"github.com/raymyers/prevc/pkg/regall"
	"github.com/raymyers/prevc/pkg/report"
)

// Environment variables.
const (
	EnvNRegs   = "PREVC_NREGS"
	EnvJobs    = "PREVC_JOBS"
	EnvVerbose = "PREVC_VERBOSE"
)

// Config is the compilation configuration.
type Config struct {
	// NRegs is the register budget K of the allocator.
	NRegs int `yaml:"nregs" toml:"nregs"`
	// Jobs bounds the number of functions compiled in parallel.
	Jobs int `yaml:"jobs" toml:"jobs"`
	// ArgsViaRegister always passes call arguments through an address
	// register instead of an immediate displacement.
	ArgsViaRegister bool `yaml:"args_via_register" toml:"args_via_register"`
	Verbose         bool `yaml:"verbose" toml:"verbose"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		NRegs: 8,
		Jobs:  1,
	}
}

// LoadFile overlays the settings of a .yaml, .yml or .toml file on c.
// Settings missing from the file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config")
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return errors.New("config %s: unsupported format %q", path, ext)
	}
	if err != nil {
		return errors.Wrap(err, "parse config %s", path)
	}

	return nil
}

// ApplyEnv overlays the PREVC_* environment variables that are set.
func (c *Config) ApplyEnv() {
	env.Load()

	c.NRegs = env.Int(EnvNRegs, c.NRegs)
	c.Jobs = env.Int(EnvJobs, c.Jobs)
	if env.Has(EnvVerbose) {
		c.Verbose = env.Bool(EnvVerbose)
	}
}

// BindFlags registers flags that write into c.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.IntVar(&c.NRegs, "nregs", c.NRegs, "number of registers available to the allocator")
	fs.IntVar(&c.Jobs, "jobs", c.Jobs, "number of functions compiled in parallel")
	fs.BoolVar(&c.ArgsViaRegister, "args-via-register", c.ArgsViaRegister, "pass call arguments through an address register")
	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "log compilation progress to stderr")
}

// ApplyFlags copies into c the values of flags that were set on the command
// line. from holds the values bound with BindFlags.
func (c *Config) ApplyFlags(fs *pflag.FlagSet, from Config) {
	if fs.Changed("nregs") {
		c.NRegs = from.NRegs
	}
	if fs.Changed("jobs") {
		c.Jobs = from.Jobs
	}
	if fs.Changed("args-via-register") {
		c.ArgsViaRegister = from.ArgsViaRegister
	}
	if fs.Changed("verbose") {
		c.Verbose = from.Verbose
	}
}

// Validate rejects settings that can never produce output.
func (c Config) Validate() error {
	if c.NRegs < regall.MinRegs || c.NRegs > regall.MaxRegs {
		return report.Config("nregs %d out of range [%d,%d]", c.NRegs, regall.MinRegs, regall.MaxRegs)
	}
	if c.Jobs < 1 {
		return report.Config("jobs %d must be positive", c.Jobs)
	}
	return nil
}
