// Package config loads and validates the documents the tool consumes: the
// per-gateway connection file, the filter/update document, the cross-site
// document, and the viper-backed runtime settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chanctl/chanctl/internal/errors"
)

// Connection describes one gateway endpoint and its credentials.
type Connection struct {
	SiteURL  string `yaml:"site_url"`
	APIToken string `yaml:"api_token"`
	UserID   string `yaml:"user_id"`
	APIType  string `yaml:"api_type"`

	// identity is derived from the file the connection was loaded from
	// and names snapshots taken against this gateway.
	identity string
}

// LoadConnection reads and validates a connection document.
func LoadConnection(path string) (*Connection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindConfig, fmt.Sprintf("reading %s", path), err)
	}

	var conn Connection
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&conn); err != nil {
		return nil, errors.Wrap(errors.KindConfig, fmt.Sprintf("parsing %s", path), err)
	}

	conn.identity = fmt.Sprintf("%s_%s", conn.APIType, stem(path))
	if err := conn.Validate(); err != nil {
		return nil, labelWithFile(err, path)
	}
	return &conn, nil
}

// Validate checks required fields and normalizes the site URL with a
// trailing slash so endpoint paths concatenate cleanly.
func (c *Connection) Validate() error {
	if strings.TrimSpace(c.SiteURL) == "" {
		return errors.New(errors.KindConfig, "connection is missing site_url")
	}
	if strings.TrimSpace(c.APIToken) == "" {
		return errors.New(errors.KindConfig, "connection is missing api_token")
	}
	switch c.APIType {
	case "newapi", "voapi":
	default:
		return errors.Newf(errors.KindConfig,
			"connection has invalid api_type %q (expected newapi or voapi)", c.APIType)
	}
	if !strings.HasSuffix(c.SiteURL, "/") {
		c.SiteURL += "/"
	}
	if strings.TrimSpace(c.UserID) == "" {
		c.UserID = "1"
	}
	return nil
}

// Identity names this gateway in snapshot files: api type plus the
// connection file's base name.
func (c *Connection) Identity() string {
	if c.identity != "" {
		return c.identity
	}
	return c.APIType
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// labelWithFile tags a validation error with the document it came from.
func labelWithFile(err error, path string) error {
	if e, ok := err.(*errors.Error); ok {
		return e.WithSource(filepath.Base(path))
	}
	return err
}
