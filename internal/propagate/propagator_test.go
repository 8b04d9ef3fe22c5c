package propagate

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanctl/chanctl/internal/filter"
	"github.com/chanctl/chanctl/internal/logger"
	"github.com/chanctl/chanctl/internal/output"
	"github.com/chanctl/chanctl/internal/patch"
	"github.com/chanctl/chanctl/internal/reconcile"
	"github.com/chanctl/chanctl/internal/snapshot"
	"github.com/chanctl/chanctl/internal/source"
)

type gateway struct {
	mu      sync.Mutex
	records map[int]map[string]any
}

func newGateway(records ...map[string]any) *gateway {
	g := &gateway{records: make(map[int]map[string]any)}
	for _, r := range records {
		g.records[int(r["id"].(float64))] = r
	}
	return g
}

func (g *gateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/channel/", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()

		if r.Method == http.MethodPut {
			var payload map[string]any
			json.NewDecoder(r.Body).Decode(&payload)
			rec := g.records[int(payload["id"].(float64))]
			for k, v := range payload {
				rec[k] = v
			}
			json.NewEncoder(w).Encode(map[string]any{"success": true})
			return
		}

		if r.URL.Query().Get("p") == "0" {
			list := make([]map[string]any, 0, len(g.records))
			for _, rec := range g.records {
				list = append(list, rec)
			}
			json.NewEncoder(w).Encode(map[string]any{"success": true, "data": list})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": []any{}})
	})
	return mux
}

func newSource(t *testing.T, gw *gateway) source.Source {
	t.Helper()
	srv := httptest.NewServer(gw.handler())
	t.Cleanup(srv.Close)

	log := logger.Discard()
	src, err := source.New("newapi", source.Options{
		BaseURL:  srv.URL + "/",
		Token:    "tok",
		UserID:   "1",
		PageSize: 100,
		MaxPages: 10,
	}, source.NewClient(0, log), log)
	require.NoError(t, err)
	return src
}

func newPropagator(t *testing.T, srcGW, tgtGW *gateway) (*Propagator, *bytes.Buffer) {
	t.Helper()
	log := logger.Discard()
	src := newSource(t, srcGW)
	tgt := newSource(t, tgtGW)

	dir := t.TempDir()
	snaps := snapshot.NewManager(filepath.Join(dir, "snapshots"), filepath.Join(dir, "backups"), log)

	var out bytes.Buffer
	renderer := output.NewRenderer(&out, true)
	orch := reconcile.New(tgt, snaps, renderer, bytes.NewReader(nil), log,
		reconcile.Options{AutoConfirm: true, Concurrency: 2})

	return New(src, tgt, orch, renderer, log), &out
}

func intPtr(i int) *int { return &i }

func TestCopyPropagatesFields(t *testing.T) {
	srcGW := newGateway(map[string]any{
		"id": float64(1), "name": "golden", "models": "gpt-4,gpt-4o",
		"model_mapping": map[string]any{"gpt-4": "gpt-4o"},
	})
	tgtGW := newGateway(
		map[string]any{"id": float64(10), "name": "prod-a", "models": "gpt-4"},
		map[string]any{"id": float64(11), "name": "staging", "models": "gpt-4"},
	)

	p, _ := newPropagator(t, srcGW, tgtGW)

	report, err := p.Copy(context.Background(),
		&filter.Spec{ID: intPtr(1)},
		&filter.Spec{NameFilters: []string{"prod"}},
		[]string{"models", "model_mapping"},
		patch.ModeOverwrite,
		"newapi_target")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, "gpt-4,gpt-4o", tgtGW.records[10]["models"])
	// Non-matching target untouched.
	assert.Equal(t, "gpt-4", tgtGW.records[11]["models"])
}

func TestCopyNeverPropagatesCredentials(t *testing.T) {
	srcGW := newGateway(map[string]any{
		"id": float64(1), "name": "golden", "key": "sk-secret", "models": "m2",
	})
	tgtGW := newGateway(map[string]any{
		"id": float64(10), "name": "prod", "key": "sk-target", "models": "m1",
	})

	p, _ := newPropagator(t, srcGW, tgtGW)

	_, err := p.Copy(context.Background(),
		&filter.Spec{ID: intPtr(1)},
		&filter.Spec{NameFilters: []string{"prod"}},
		[]string{"models", "key"},
		patch.ModeOverwrite,
		"newapi_target")
	require.NoError(t, err)

	assert.Equal(t, "sk-target", tgtGW.records[10]["key"])
	assert.Equal(t, "m2", tgtGW.records[10]["models"])
}

func TestCopySkipsFieldsAbsentOnSource(t *testing.T) {
	srcGW := newGateway(map[string]any{
		"id": float64(1), "name": "golden", "models": "m2",
	})
	tgtGW := newGateway(map[string]any{
		"id": float64(10), "name": "prod", "models": "m1", "base_url": "https://old",
	})

	p, _ := newPropagator(t, srcGW, tgtGW)

	_, err := p.Copy(context.Background(),
		&filter.Spec{ID: intPtr(1)},
		&filter.Spec{NameFilters: []string{"prod"}},
		[]string{"models", "base_url"},
		patch.ModeOverwrite,
		"newapi_target")
	require.NoError(t, err)

	// The source carries no base_url, so the target keeps its own.
	assert.Equal(t, "https://old", tgtGW.records[10]["base_url"])
	assert.Equal(t, "m2", tgtGW.records[10]["models"])
}

func TestCopySourceZeroMatchesIsHardError(t *testing.T) {
	p, _ := newPropagator(t,
		newGateway(map[string]any{"id": float64(1), "name": "a"}),
		newGateway(map[string]any{"id": float64(10), "name": "prod"}))

	_, err := p.Copy(context.Background(),
		&filter.Spec{ID: intPtr(99)},
		&filter.Spec{},
		[]string{"models"},
		patch.ModeOverwrite,
		"t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched no records")
}

func TestCopyMultipleSourceMatchesWarnsAndUsesFirst(t *testing.T) {
	srcGW := newGateway(
		map[string]any{"id": float64(1), "name": "golden-a", "models": "m1"},
		map[string]any{"id": float64(2), "name": "golden-b", "models": "m2"},
	)
	tgtGW := newGateway(map[string]any{"id": float64(10), "name": "prod", "models": "x"})

	p, out := newPropagator(t, srcGW, tgtGW)

	_, err := p.Copy(context.Background(),
		&filter.Spec{NameFilters: []string{"golden"}},
		&filter.Spec{},
		[]string{"models"},
		patch.ModeOverwrite,
		"t")
	require.NoError(t, err)

	assert.Contains(t, out.String(), "warning")
	assert.Contains(t, out.String(), "ignoring")
}

func TestCompareReportsDifferences(t *testing.T) {
	srcGW := newGateway(map[string]any{
		"id": float64(1), "name": "golden", "models": "a,b", "priority": float64(5),
	})
	tgtGW := newGateway(map[string]any{
		// Same set in a different order: not a difference for group-like
		// comparison, but models is order-sensitive.
		"id": float64(10), "name": "prod", "models": "b,a", "priority": float64(3),
	})

	p, out := newPropagator(t, srcGW, tgtGW)

	diffs, err := p.Compare(context.Background(),
		&filter.Spec{ID: intPtr(1)},
		&filter.Spec{NameFilters: []string{"prod"}},
		[]string{"models", "priority"})
	require.NoError(t, err)

	assert.Equal(t, 2, diffs)
	assert.Contains(t, out.String(), "differs on models")
	assert.Contains(t, out.String(), "differs on priority")
}

func TestCompareEquivalentRepresentations(t *testing.T) {
	srcGW := newGateway(map[string]any{
		"id": float64(1), "name": "golden",
		"group":         "default,vip",
		"model_mapping": map[string]any{"a": "b"},
	})
	tgtGW := newGateway(map[string]any{
		"id": float64(10), "name": "prod",
		"group":         "vip,default",
		"model_mapping": `{"a":"b"}`,
	})

	p, _ := newPropagator(t, srcGW, tgtGW)

	diffs, err := p.Compare(context.Background(),
		&filter.Spec{ID: intPtr(1)},
		&filter.Spec{NameFilters: []string{"prod"}},
		[]string{"group", "model_mapping"})
	require.NoError(t, err)
	assert.Zero(t, diffs)
}

func TestCounts(t *testing.T) {
	p, out := newPropagator(t,
		newGateway(
			map[string]any{"id": float64(1), "name": "a"},
			map[string]any{"id": float64(2), "name": "b"}),
		newGateway(map[string]any{"id": float64(10), "name": "c"}))

	srcCount, tgtCount, err := p.Counts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, srcCount)
	assert.Equal(t, 1, tgtCount)
	assert.Contains(t, out.String(), "differ by 1")
}
