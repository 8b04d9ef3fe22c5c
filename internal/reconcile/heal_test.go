package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func disabledRecords() []map[string]any {
	return []map[string]any{
		{"id": float64(1), "name": "up", "status": float64(1), "models": "gpt-4"},
		{"id": float64(2), "name": "down-a", "status": float64(3), "models": "gpt-4,gpt-4o"},
		{"id": float64(3), "name": "down-b", "status": float64(3), "models": "claude-3"},
	}
}

func TestTestAndEnableEnablesPassing(t *testing.T) {
	gw := newGateway(disabledRecords()...)
	gw.probeFail = map[int]string{3: "upstream rejected the call"}
	f := newFixture(t, gw, Options{AutoConfirm: true, Concurrency: 2}, "")

	report, err := f.orch.TestAndEnable(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.ElementsMatch(t, []int{2, 3}, gw.probed)
	assert.Equal(t, float64(1), gw.records[2]["status"])
	assert.Equal(t, float64(3), gw.records[3]["status"])
	// Enabled records stay untouched.
	assert.Len(t, gw.updates, 1)
}

func TestTestAndEnableQuotaFailuresSkipConfirmation(t *testing.T) {
	gw := newGateway(disabledRecords()...)
	gw.probeFail = map[int]string{3: "insufficient quota"}
	f := newFixture(t, gw, Options{}, "")

	report, err := f.orch.TestAndEnable(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Cancelled)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, float64(1), gw.records[2]["status"])
	assert.Contains(t, f.out.String(), "quota-related")
}

func TestTestAndEnableDeclinedOnOtherFailures(t *testing.T) {
	gw := newGateway(disabledRecords()...)
	gw.probeFail = map[int]string{3: "invalid api key"}
	f := newFixture(t, gw, Options{}, "n\n")

	report, err := f.orch.TestAndEnable(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Cancelled)
	assert.Empty(t, gw.updates)
	assert.Equal(t, float64(3), gw.records[2]["status"])
}

func TestTestAndEnableNoDisabledRecords(t *testing.T) {
	gw := newGateway(seedRecords()...)
	f := newFixture(t, gw, Options{AutoConfirm: true}, "")

	report, err := f.orch.TestAndEnable(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Results)
	assert.Empty(t, gw.probed)
	assert.Contains(t, f.out.String(), "No auto-disabled records")
}

func TestTestAndEnableDryRun(t *testing.T) {
	gw := newGateway(disabledRecords()...)
	f := newFixture(t, gw, Options{DryRun: true}, "")

	report, err := f.orch.TestAndEnable(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Results)
	assert.Empty(t, gw.updates)
	assert.Contains(t, f.out.String(), "Dry run")
}

func TestFindKeyMatchesWithFallback(t *testing.T) {
	gw := newGateway(
		map[string]any{"id": float64(1), "name": "a", "key": "sk-find-me"},
		map[string]any{"id": float64(2), "name": "b", "apikey": "sk-find-me"},
		map[string]any{"id": float64(3), "name": "c", "key": "sk-other"},
	)
	f := newFixture(t, gw, Options{}, "")

	matched, err := f.orch.FindKey(context.Background(), "sk-find-me")
	require.NoError(t, err)

	require.Len(t, matched, 2)
	assert.Equal(t, 1, matched[0].ID)
	assert.Equal(t, 2, matched[1].ID)
}

func TestFindKeyNoMatchIsNotAnError(t *testing.T) {
	f := newFixture(t, newGateway(seedRecords()...), Options{}, "")

	matched, err := f.orch.FindKey(context.Background(), "sk-nope")
	require.NoError(t, err)
	assert.Empty(t, matched)
}
