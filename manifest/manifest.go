// Package manifest handles fool.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/fool/vm"
)

// FileName is the name of the project configuration file.
const FileName = "fool.toml"

// Manifest represents a fool.toml project configuration.
type Manifest struct {
	Project Project  `toml:"project"`
	Source  Source   `toml:"source"`
	Build   Build    `toml:"build"`
	VM      VMConfig `toml:"vm"`
	Log     Log      `toml:"log"`

	// Dir is the directory containing the fool.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures the program to compile.
type Source struct {
	Entry string `toml:"entry"`
}

// Build configures compiler outputs. Empty paths disable the output.
type Build struct {
	Asm   string `toml:"asm"`
	Image string `toml:"image"`
}

// VMConfig configures the virtual machine.
type VMConfig struct {
	Memory int  `toml:"memory"`
	Trace  bool `toml:"trace"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no fool.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Source.Entry == "" {
		m.Source.Entry = "main.fool"
	}
	if m.VM.Memory == 0 {
		m.VM.Memory = vm.DefaultMemSize
	}
}

// Load parses a fool.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a fool.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
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

// Validate checks value ranges.
func (m *Manifest) Validate() error {
	if m.VM.Memory < 0 {
		return fmt.Errorf("vm.memory must be positive, got %d", m.VM.Memory)
	}
	if m.Log.Verbosity < -4 || m.Log.Verbosity > 2 {
		return fmt.Errorf("log.verbosity must be between -4 and 2, got %d", m.Log.Verbosity)
	}
	return nil
}

// EntryPath returns the absolute path of the program to compile.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Source.Entry)
}

// AsmPath returns the absolute path of the assembly output, or "".
func (m *Manifest) AsmPath() string {
	return m.resolve(m.Build.Asm)
}

// ImagePath returns the absolute path of the image output, or "".
func (m *Manifest) ImagePath() string {
	return m.resolve(m.Build.Image)
}

// LogPath returns the absolute path of the log file, or "" for stderr.
func (m *Manifest) LogPath() string {
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
