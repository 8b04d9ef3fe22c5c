package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/chanctl/chanctl/internal/errors"
	"github.com/chanctl/chanctl/internal/logger"
	"github.com/chanctl/chanctl/pkg/types"
)

// newAPI talks to new-api style gateways. Pagination starts at page zero;
// the token goes out raw in the Authorization header. List fields are
// comma-joined strings on the wire, map fields stay native JSON objects.
type newAPI struct {
	opts   Options
	client *Client
	log    logger.Logger
}

func newNewAPI(opts Options, client *Client, log logger.Logger) *newAPI {
	return &newAPI{opts: opts, client: client, log: log.WithField("source", "newapi")}
}

func (s *newAPI) Name() string { return "newapi" }

func (s *newAPI) headers() map[string]string {
	return map[string]string{
		"Authorization": s.opts.Token,
		"New-Api-User":  s.opts.UserID,
	}
}

func (s *newAPI) FetchAll(ctx context.Context) ([]types.Record, error) {
	var all []types.Record
	for page := 0; ; page++ {
		if s.opts.MaxPages > 0 && page >= s.opts.MaxPages {
			s.log.WithField("pages", page).Warn("page ceiling reached, stopping fetch")
			break
		}

		url := fmt.Sprintf("%sapi/channel/?p=%d&page_size=%d", s.opts.BaseURL, page, s.opts.PageSize)
		resp, err := s.client.Do(ctx, http.MethodGet, url, s.headers(), nil)
		if err != nil {
			return nil, errors.Wrap(errors.KindFetch, fmt.Sprintf("listing page %d", page), err)
		}
		if resp.Status != http.StatusOK {
			return nil, errors.Newf(errors.KindFetch,
				"listing page %d: server returned %d", page, resp.Status)
		}

		env, err := decodeEnvelope(resp.Body)
		if err != nil {
			return nil, errors.Wrap(errors.KindFetch, fmt.Sprintf("listing page %d", page), err)
		}
		if !env.Success {
			return nil, errors.Newf(errors.KindFetch, "listing page %d: %s", page, env.Message)
		}
		if len(env.Data) == 0 || string(env.Data) == "null" {
			break
		}

		var raw []map[string]any
		if err := json.Unmarshal(env.Data, &raw); err != nil {
			return nil, errors.Newf(errors.KindFetch,
				"listing page %d: response data is not a record array", page)
		}
		if len(raw) == 0 {
			break
		}

		for _, m := range raw {
			rec, err := types.RecordFromMap(m)
			if err != nil {
				return nil, errors.Wrap(errors.KindFetch, fmt.Sprintf("listing page %d", page), err)
			}
			all = append(all, *rec)
		}
		s.log.WithFields(map[string]interface{}{
			"page":    page,
			"records": len(raw),
		}).Debug("fetched page")
	}
	return all, nil
}

func (s *newAPI) FetchOne(ctx context.Context, id int) (*types.Record, error) {
	url := fmt.Sprintf("%sapi/channel/%d", s.opts.BaseURL, id)
	resp, err := s.client.Do(ctx, http.MethodGet, url, s.headers(), nil)
	if err != nil {
		return nil, errors.Wrap(errors.KindFetch, fmt.Sprintf("fetching record %d", id), err)
	}
	if resp.Status == http.StatusNotFound {
		return nil, nil
	}
	if resp.Status != http.StatusOK {
		return nil, errors.Newf(errors.KindFetch,
			"fetching record %d: server returned %d", id, resp.Status)
	}

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.KindFetch, fmt.Sprintf("fetching record %d", id), err)
	}
	if !env.Success {
		return nil, errors.Newf(errors.KindFetch, "fetching record %d: %s", id, env.Message)
	}

	var m map[string]any
	if err := json.Unmarshal(env.Data, &m); err != nil {
		return nil, errors.Newf(errors.KindFetch, "fetching record %d: data is not an object", id)
	}
	rec, err := types.RecordFromMap(m)
	if err != nil {
		return nil, errors.Wrap(errors.KindFetch, fmt.Sprintf("fetching record %d", id), err)
	}
	return rec, nil
}

func (s *newAPI) ApplyPatch(ctx context.Context, p *types.Patch) error {
	url := s.opts.BaseURL + "api/channel/"
	resp, err := s.client.Do(ctx, http.MethodPut, url, s.headers(), p.Payload())
	if err != nil {
		return errors.Wrap(errors.KindPatch, fmt.Sprintf("updating record %d", p.ID), err)
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return errors.Newf(errors.KindPatch,
			"updating record %d: server returned %d: %s",
			p.ID, resp.Status, strings.TrimSpace(string(resp.Body)))
	}
	if env, err := decodeEnvelope(resp.Body); err == nil && !env.Success {
		s.log.WithField("record", p.ID).
			Warn(fmt.Sprintf("update accepted but server reported: %s", env.Message))
	}
	return nil
}

func (s *newAPI) TestRecord(ctx context.Context, id int, model string) (*TestResult, error) {
	return testRecord(ctx, s.client, s.opts.BaseURL, s.headers(), id, model)
}

func (s *newAPI) FormatListField(field string, members []string) any {
	return strings.Join(members, ",")
}

func (s *newAPI) FormatMapField(field string, value map[string]any) any {
	return value
}

func (s *newAPI) FormatScalarField(field string, value any) any {
	switch field {
	case "priority", "weight":
		if n, ok := types.CoerceInt(value); ok {
			return n
		}
		s.log.WithField("field", field).
			Warn(fmt.Sprintf("value %v is not an integer, sending as-is", value))
	}
	return value
}
