package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanctl/chanctl/internal/logger"
	"github.com/chanctl/chanctl/internal/source"
	"github.com/chanctl/chanctl/pkg/types"
)

// fakeSource records applied patches and fails ids listed in failIDs.
type fakeSource struct {
	applied []*types.Patch
	failIDs map[int]bool
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchAll(ctx context.Context) ([]types.Record, error) { return nil, nil }

func (f *fakeSource) FetchOne(ctx context.Context, id int) (*types.Record, error) { return nil, nil }

func (f *fakeSource) ApplyPatch(ctx context.Context, p *types.Patch) error {
	f.applied = append(f.applied, p)
	if f.failIDs[p.ID] {
		return fmt.Errorf("rejected by server")
	}
	return nil
}

func (f *fakeSource) TestRecord(ctx context.Context, id int, model string) (*source.TestResult, error) {
	return &source.TestResult{Passed: true, Message: "passed"}, nil
}

func (f *fakeSource) FormatListField(field string, members []string) any { return members }

func (f *fakeSource) FormatMapField(field string, value map[string]any) any { return value }

func (f *fakeSource) FormatScalarField(field string, value any) any { return value }

func newManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	return NewManager(filepath.Join(dir, "snapshots"), filepath.Join(dir, "backups"), logger.Discard())
}

func testRecords() []types.Record {
	return []types.Record{
		{ID: 1, Name: "one", Fields: map[string]any{"models": "a,b"}},
		{ID: 2, Name: "two", Fields: map[string]any{"models": "c"}},
	}
}

func TestCaptureAndLoad(t *testing.T) {
	m := newManager(t)

	snap, path, err := m.Capture(testRecords(), "newapi_prod")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.RecordCount())
	assert.FileExists(t, path)

	loaded, err := m.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "newapi_prod", loaded.Collection)
	require.NotNil(t, loaded.RecordByID(1))
	assert.Equal(t, "a,b", loaded.RecordByID(1).Get("models"))
}

func TestCaptureSanitizesIdentity(t *testing.T) {
	m := newManager(t)

	_, path, err := m.Capture(testRecords(), "newapi prod/eu")
	require.NoError(t, err)
	assert.NotContains(t, filepath.Base(path), " ")
	assert.NotContains(t, filepath.Base(path), "/")
}

func TestFindLatestFor(t *testing.T) {
	m := newManager(t)

	none, _, err := m.FindLatestFor("newapi_prod")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, firstPath, err := m.Capture(testRecords(), "newapi_prod")
	require.NoError(t, err)
	_, _, err = m.Capture(testRecords(), "voapi_other")
	require.NoError(t, err)

	// Make the second prod snapshot clearly newer.
	_, secondPath, err := m.Capture(testRecords()[:1], "newapi_prod")
	require.NoError(t, err)
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(secondPath, future, future))

	latest, path, err := m.FindLatestFor("newapi_prod")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, secondPath, path)
	assert.Equal(t, 1, latest.RecordCount())
	assert.NotEqual(t, firstPath, path)
}

func TestListFiltersByIdentity(t *testing.T) {
	m := newManager(t)

	_, _, err := m.Capture(testRecords(), "newapi_prod")
	require.NoError(t, err)
	_, _, err = m.Capture(testRecords(), "voapi_other")
	require.NoError(t, err)

	entries, err := m.List("newapi_prod")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	all, err := m.List("")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListRecoversIdentityFromFileName(t *testing.T) {
	m := newManager(t)

	_, _, err := m.Capture(testRecords(), "newapi_prod-eu")
	require.NoError(t, err)

	// Even an unfiltered listing names each snapshot's identity, and
	// hyphens inside the identity survive the round trip.
	all, err := m.List("")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "newapi_prod-eu", all[0].Identity)

	filtered, err := m.List("newapi_prod-eu")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "newapi_prod-eu", filtered[0].Identity)
}

func TestRestore(t *testing.T) {
	m := newManager(t)
	src := &fakeSource{failIDs: map[int]bool{2: true}}

	snap := &types.Snapshot{
		Collection: "newapi_prod",
		Timestamp:  time.Now(),
		Records:    testRecords(),
	}

	results := m.Restore(context.Background(), snap, src)
	require.Len(t, results, 2)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Message, "rejected")

	require.Len(t, src.applied, 2)
	assert.Equal(t, 1, src.applied[0].ID)
	assert.Equal(t, "a,b", src.applied[0].Changed["models"])
	assert.Equal(t, "one", src.applied[0].Changed["name"])
}

func TestRestoreOrdersByIDWithoutMutatingSnapshot(t *testing.T) {
	m := newManager(t)
	src := &fakeSource{}

	records := []types.Record{
		{ID: 9, Name: "nine", Fields: map[string]any{"models": "z"}},
		{ID: 2, Name: "two", Fields: map[string]any{"models": "c"}},
	}
	snap := &types.Snapshot{
		Collection: "newapi_prod",
		Timestamp:  time.Now(),
		Records:    records,
	}

	results := m.Restore(context.Background(), snap, src)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].ID)
	assert.Equal(t, 9, results[1].ID)

	// The caller's snapshot keeps its original order.
	assert.Equal(t, 9, snap.Records[0].ID)
}

func TestBackupRulesAndSummarize(t *testing.T) {
	m := newManager(t)

	rules := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte(`
filters:
  name_filters: [prod]
updates:
  models:
    mode: append
    value: gpt-4o
    enabled: true
  priority:
    value: 9
    enabled: false
`), 0o644))

	captureTime := time.Now()
	_, err := m.BackupRules(rules, captureTime.Add(-time.Second))
	require.NoError(t, err)

	snap := &types.Snapshot{
		Collection: "newapi_prod",
		Timestamp:  captureTime,
		Records:    testRecords(),
	}

	summary := m.Summarize(snap)
	assert.Contains(t, summary, "models = gpt-4o (append)")
	assert.NotContains(t, summary, "priority")
}

func TestSummarizeWithoutBackup(t *testing.T) {
	m := newManager(t)

	snap := &types.Snapshot{
		Collection: "newapi_prod",
		Timestamp:  time.Now(),
		Records:    []types.Record{},
	}

	assert.Contains(t, m.Summarize(snap), "unavailable")
}

func TestSummarizeIgnoresLaterBackups(t *testing.T) {
	m := newManager(t)

	rules := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte(`
updates:
  models:
    value: late
    enabled: true
`), 0o644))

	captureTime := time.Now()
	_, err := m.BackupRules(rules, captureTime.Add(time.Minute))
	require.NoError(t, err)

	snap := &types.Snapshot{
		Collection: "newapi_prod",
		Timestamp:  captureTime,
		Records:    []types.Record{},
	}

	assert.Contains(t, m.Summarize(snap), "unavailable")
}
