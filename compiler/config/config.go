// Package config reads the optional bfc.yaml file.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"

	"github.com/slowlang/bfc/compiler/back"
	"github.com/slowlang/bfc/compiler/platform"
	"github.com/slowlang/bfc/compiler/toolchain"
)

type (
	Config struct {
		// Target and Mode are computed from the host if not set.
		Target *back.Target   `yaml:"target,omitempty"`
		Mode   *platform.Mode `yaml:"mode,omitempty"`

		// Tape is the number of cells for bfc run.
		Tape int `yaml:"tape,omitempty"`

		Tools Tools `yaml:"tools"`
	}

	Tools struct {
		toolchain.Tools `yaml:",inline"`

		// Timeout bounds each tool run. Zero means no limit.
		Timeout time.Duration `yaml:"timeout,omitempty"`
	}
)

const (
	DefaultFile = "bfc.yaml"
	DefaultTape = 30000
)

// Load reads the file at path.
// A missing DefaultFile is not an error, the zero Config is returned instead.
func Load(path string) (c Config, err error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return c, nil
	}
	if err != nil {
		return c, errors.Wrap(err, "read config")
	}

	c, err = Parse(data)
	if err != nil {
		return c, errors.Wrap(err, "%v", path)
	}

	return c, nil
}

func Parse(data []byte) (c Config, err error) {
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return c, errors.Wrap(err, "parse yaml")
	}

	if c.Tape < 0 {
		return c, errors.New("negative tape size: %d", c.Tape)
	}

	return c, nil
}

// Resolve fills unset fields with host defaults.
func (c Config) Resolve(p platform.Info) (Config, error) {
	if c.Target == nil {
		t, err := back.Suggest(p)
		if err != nil {
			return c, errors.Wrap(err, "suggest target")
		}

		c.Target = &t
	}

	if c.Mode == nil {
		m := platform.DefaultMode(p)
		c.Mode = &m
	}

	if c.Tape == 0 {
		c.Tape = DefaultTape
	}

	return c, nil
}
