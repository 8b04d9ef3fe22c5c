package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chanctl/chanctl/internal/errors"
	"github.com/chanctl/chanctl/internal/filter"
	"github.com/chanctl/chanctl/internal/patch"
)

// Endpoint names one side of a cross-site action: a connection file plus
// an optional record selector.
type Endpoint struct {
	Connection string      `yaml:"connection"`
	Filters    filter.Spec `yaml:"filters"`
}

// CrossDocument configures a cross-site copy or compare between two
// independently configured gateways.
type CrossDocument struct {
	Source Endpoint `yaml:"source"`
	Target Endpoint `yaml:"target"`

	FieldsToCopy    []string `yaml:"fields_to_copy"`
	CopyMode        string   `yaml:"copy_mode"`
	FieldsToCompare []string `yaml:"fields_to_compare"`
}

// LoadCrossDocument reads, strictly decodes, and validates a cross-site
// document.
func LoadCrossDocument(path string) (*CrossDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindConfig, fmt.Sprintf("reading %s", path), err)
	}

	var doc CrossDocument
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.KindConfig, fmt.Sprintf("parsing %s", path), err)
	}
	if err := doc.Validate(); err != nil {
		return nil, labelWithFile(err, path)
	}
	return &doc, nil
}

// Validate checks both endpoints and the action parameters.
func (d *CrossDocument) Validate() error {
	if strings.TrimSpace(d.Source.Connection) == "" {
		return errors.New(errors.KindConfig, "cross document is missing source.connection")
	}
	if strings.TrimSpace(d.Target.Connection) == "" {
		return errors.New(errors.KindConfig, "cross document is missing target.connection")
	}
	if err := d.Source.Filters.Validate(); err != nil {
		return err
	}
	if err := d.Target.Filters.Validate(); err != nil {
		return err
	}

	if len(d.FieldsToCopy) > 0 {
		mode := d.CopyMode
		if mode == "" {
			mode = string(patch.ModeOverwrite)
		}
		switch patch.Mode(mode) {
		case patch.ModeOverwrite, patch.ModeAppend, patch.ModeRemove,
			patch.ModeMerge, patch.ModeDeleteKeys:
		default:
			return errors.Newf(errors.KindConfig, "unknown copy_mode %q", d.CopyMode)
		}
	}
	return nil
}

// Mode returns the effective copy mode, defaulting to overwrite.
func (d *CrossDocument) Mode() patch.Mode {
	if d.CopyMode == "" {
		return patch.ModeOverwrite
	}
	return patch.Mode(d.CopyMode)
}
