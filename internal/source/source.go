// Package source talks to gateway channel APIs. Each supported vendor gets
// one implementation behind the Source interface; everything above this
// package is vendor-agnostic.
package source

import (
	"context"

	"github.com/chanctl/chanctl/internal/errors"
	"github.com/chanctl/chanctl/internal/logger"
	"github.com/chanctl/chanctl/internal/patch"
	"github.com/chanctl/chanctl/pkg/types"
)

// Source is one vendor's record store. It fetches collections, applies
// patches, and knows the vendor's wire formatting conventions.
type Source interface {
	patch.Formatter

	// Name identifies the vendor in logs and reports.
	Name() string
	// FetchAll lists every record, paging until the vendor signals the end.
	FetchAll(ctx context.Context) ([]types.Record, error)
	// FetchOne retrieves a single record, nil when it does not exist.
	FetchOne(ctx context.Context, id int) (*types.Record, error)
	// ApplyPatch sends one record's changed fields. A nil error means the
	// vendor accepted the update.
	ApplyPatch(ctx context.Context, p *types.Patch) error
	// TestRecord probes one record through the vendor's test endpoint using
	// the given model. The error covers the transport only; a probe that
	// reached the gateway and failed comes back as an unfavorable result.
	TestRecord(ctx context.Context, id int, model string) (*TestResult, error)
}

// Options configures one vendor connection.
type Options struct {
	BaseURL  string
	Token    string
	UserID   string
	PageSize int
	MaxPages int
}

// New builds the Source for a vendor identifier.
func New(apiType string, opts Options, client *Client, log logger.Logger) (Source, error) {
	switch apiType {
	case "newapi":
		return newNewAPI(opts, client, log), nil
	case "voapi":
		return newVoAPI(opts, client, log), nil
	default:
		return nil, errors.Newf(errors.KindConfig,
			"unknown api_type %q (expected newapi or voapi)", apiType)
	}
}
