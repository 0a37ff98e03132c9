// Package config handles objcsend.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/objcsend/abi"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "objcsend.toml"

// Auto selects the host value for runtime.family and runtime.arch.
const Auto = "auto"

// Config represents an objcsend.toml file.
type Config struct {
	Runtime  Runtime  `toml:"runtime"`
	Dispatch Dispatch `toml:"dispatch"`
	Log      Log      `toml:"log"`
	Trace    Trace    `toml:"trace"`

	// Path is the file the configuration was loaded from (empty for
	// Default).
	Path string `toml:"-"`
}

// Runtime selects the Objective-C runtime library.
type Runtime struct {
	Library string `toml:"library"`
	Family  string `toml:"family"`
	Arch    string `toml:"arch"`
}

// Dispatch configures message sends.
type Dispatch struct {
	ForceChecked bool `toml:"force-checked"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Trace configures the send trace.
type Trace struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Runtime: Runtime{Family: Auto, Arch: Auto},
	}
}

// Load parses the objcsend.toml file in dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration at path. Unset keys keep their
// Default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse error in %s: unknown key %s", path, undecoded[0])
	}

	c.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	// Defaults
	if c.Runtime.Family == "" {
		c.Runtime.Family = Auto
	}
	if c.Runtime.Arch == "" {
		c.Runtime.Arch = Auto
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find an objcsend.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks the runtime family and arch names and the log
// verbosity range.
func (c *Config) Validate() error {
	if _, err := c.Family(); err != nil {
		return err
	}
	if _, err := c.Arch(); err != nil {
		return err
	}
	if c.Log.Verbosity < -4 || c.Log.Verbosity > 2 {
		return fmt.Errorf("log verbosity %d out of range -4..2", c.Log.Verbosity)
	}
	return nil
}

// Family returns the configured runtime family, or the host family for
// "auto".
func (c *Config) Family() (abi.Family, error) {
	if c.Runtime.Family == "" || c.Runtime.Family == Auto {
		return abi.HostFamily(), nil
	}
	return abi.ParseFamily(c.Runtime.Family)
}

// Arch returns the configured arch, or the host arch for "auto".
func (c *Config) Arch() (abi.Arch, error) {
	if c.Runtime.Arch == "" || c.Runtime.Arch == Auto {
		return abi.HostArch(), nil
	}
	a := abi.ParseArch(c.Runtime.Arch)
	if a == abi.ArchUnknown {
		return a, fmt.Errorf("unknown arch %q", c.Runtime.Arch)
	}
	return a, nil
}

// LogFile returns the log destination for commonlog.Configure: nil means
// stderr.
func (c *Config) LogFile() *string {
	if c.Log.File == "" {
		return nil
	}
	return &c.Log.File
}
