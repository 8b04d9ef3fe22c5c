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

// voAPI talks to vo-api style gateways. Pagination starts at page one with
// a bearer token; the list payload may be a bare array or wrapped under a
// records or list key. Map fields travel as JSON strings, empty maps as
// empty strings.
type voAPI struct {
	opts   Options
	client *Client
	log    logger.Logger
}

func newVoAPI(opts Options, client *Client, log logger.Logger) *voAPI {
	return &voAPI{opts: opts, client: client, log: log.WithField("source", "voapi")}
}

func (s *voAPI) Name() string { return "voapi" }

func (s *voAPI) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + s.opts.Token,
		"New-Api-User":  s.opts.UserID,
	}
}

func (s *voAPI) FetchAll(ctx context.Context) ([]types.Record, error) {
	var all []types.Record
	for page := 1; ; page++ {
		if s.opts.MaxPages > 0 && page > s.opts.MaxPages {
			s.log.WithField("pages", page-1).Warn("page ceiling reached, stopping fetch")
			break
		}

		url := fmt.Sprintf("%sapi/channel/?p=%d&page_size=%d", s.opts.BaseURL, page, s.opts.PageSize)
		resp, err := s.client.Do(ctx, http.MethodGet, url, s.headers(), nil)
		if err != nil {
			return nil, errors.Wrap(errors.KindFetch, fmt.Sprintf("listing page %d", page), err)
		}

		env, envErr := decodeEnvelope(resp.Body)

		// A 400 complaining about the page number is how this vendor
		// reports the end of pagination.
		if resp.Status == http.StatusBadRequest && envErr == nil &&
			strings.Contains(strings.ToLower(env.Message), "page") {
			break
		}
		if resp.Status != http.StatusOK {
			return nil, errors.Newf(errors.KindFetch,
				"listing page %d: server returned %d", page, resp.Status)
		}
		if envErr != nil {
			return nil, errors.Wrap(errors.KindFetch, fmt.Sprintf("listing page %d", page), envErr)
		}
		if !env.Success {
			return nil, errors.Newf(errors.KindFetch, "listing page %d: %s", page, env.Message)
		}
		if len(env.Data) == 0 || string(env.Data) == "null" {
			break
		}

		raw, err := extractRecords(env.Data)
		if err != nil {
			return nil, errors.Wrap(errors.KindFetch, fmt.Sprintf("listing page %d", page), err)
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

// extractRecords handles the three list payload shapes this vendor emits:
// a bare array, {"records": [...]} or {"list": [...]}.
func extractRecords(data json.RawMessage) ([]map[string]any, error) {
	var bare []map[string]any
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, nil
	}

	var wrapped struct {
		Records []map[string]any `json:"records"`
		List    []map[string]any `json:"list"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("response data is neither a record array nor a wrapped page")
	}
	if wrapped.Records != nil {
		return wrapped.Records, nil
	}
	if wrapped.List != nil {
		return wrapped.List, nil
	}
	return nil, fmt.Errorf("response data carries neither records nor list")
}

func (s *voAPI) FetchOne(ctx context.Context, id int) (*types.Record, error) {
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

	// Either the shared envelope or a bare record object.
	if env, err := decodeEnvelope(resp.Body); err == nil && env.Success && len(env.Data) > 0 {
		var m map[string]any
		if err := json.Unmarshal(env.Data, &m); err == nil {
			return types.RecordFromMap(m)
		}
	}
	var m map[string]any
	if err := json.Unmarshal(resp.Body, &m); err == nil {
		if _, hasID := m["id"]; hasID {
			return types.RecordFromMap(m)
		}
	}
	return nil, errors.Newf(errors.KindFetch, "fetching record %d: unrecognized response shape", id)
}

func (s *voAPI) ApplyPatch(ctx context.Context, p *types.Patch) error {
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
	return nil
}

func (s *voAPI) TestRecord(ctx context.Context, id int, model string) (*TestResult, error) {
	return testRecord(ctx, s.client, s.opts.BaseURL, s.headers(), id, model)
}

func (s *voAPI) FormatListField(field string, members []string) any {
	return strings.Join(members, ",")
}

func (s *voAPI) FormatMapField(field string, value map[string]any) any {
	if len(value) == 0 {
		return ""
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		s.log.WithField("field", field).Warn(fmt.Sprintf("map value not encodable: %v", err))
		return ""
	}
	return string(encoded)
}

func (s *voAPI) FormatScalarField(field string, value any) any {
	return value
}
