package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chanctl/chanctl/internal/filter"
	"github.com/chanctl/chanctl/internal/normalize"
	"github.com/chanctl/chanctl/internal/output"
	"github.com/chanctl/chanctl/internal/source"
	"github.com/chanctl/chanctl/pkg/types"
)

// Gateway status values. Auto-disabled is the state the gateway moves a
// record into after repeated upstream failures.
const (
	statusEnabled      = 1
	statusAutoDisabled = 3
)

// probeOutcome pairs one auto-disabled record with its probe result.
type probeOutcome struct {
	record types.Record
	result *source.TestResult
}

// TestAndEnable probes every auto-disabled record through the vendor's test
// endpoint and re-enables the ones that pass. Quota failures alone do not
// gate the enable step; any other failure class asks for confirmation
// before passing records are enabled.
func (o *Orchestrator) TestAndEnable(ctx context.Context) (*Report, error) {
	records, err := o.src.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	o.log.WithField("records", len(records)).Info("collection fetched")

	var disabled []types.Record
	for i := range records {
		if status, ok := types.CoerceInt(records[i].Get("status")); ok && status == statusAutoDisabled {
			disabled = append(disabled, records[i])
		}
	}
	if len(disabled) == 0 {
		o.renderer.Info("No auto-disabled records found, nothing to test")
		return &Report{}, nil
	}
	o.renderer.Info(fmt.Sprintf("Testing %d auto-disabled record(s)", len(disabled)))

	outcomes := o.probeAll(ctx, disabled)

	var passing []probeOutcome
	var failures []probeOutcome
	for _, out := range outcomes {
		if out.result.Passed {
			passing = append(passing, out)
			o.renderer.Info(fmt.Sprintf("  %s: passed", out.record.String()))
		} else {
			failures = append(failures, out)
			o.renderer.Info(fmt.Sprintf("  %s: failed (%s)", out.record.String(), out.result.Message))
		}
	}
	o.renderer.Info(fmt.Sprintf("\nTested %d record(s): %d passed, %d failed",
		len(outcomes), len(passing), len(failures)))

	report := &Report{}
	if len(passing) == 0 {
		o.renderer.Info("No passing records to enable")
		return report, nil
	}

	if o.opts.DryRun {
		o.renderer.Info(fmt.Sprintf("\nDry run: %d record(s) would be enabled", len(passing)))
		return report, nil
	}

	if !o.confirmEnable(passing, failures) {
		o.renderer.Info("Cancelled")
		report.Cancelled = true
		return report, nil
	}

	plan := &Plan{}
	for _, out := range passing {
		rec := out.record
		plan.Entries = append(plan.Entries, PlanEntry{
			Record: rec,
			Patch:  &types.Patch{ID: rec.ID, Changed: map[string]any{"status": statusEnabled}},
		})
	}

	report.Results = o.apply(ctx, plan)
	for _, res := range report.Results {
		if res.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	o.renderer.Report(report.Results, 0, "")
	return report, report.Err()
}

// probeAll runs the per-record probes under the concurrency gate, outcome
// order following input order. A transport error is folded into a failed
// result rather than aborting the whole sweep.
func (o *Orchestrator) probeAll(ctx context.Context, disabled []types.Record) []probeOutcome {
	outcomes := make([]probeOutcome, len(disabled))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)

	for i := range disabled {
		i := i
		g.Go(func() error {
			rec := disabled[i]
			var result *source.TestResult

			model, ok := probeModel(&rec)
			if !ok {
				result = &source.TestResult{
					Message: "no test model and empty model list",
					Failure: source.FailConfig,
				}
			} else {
				var err error
				result, err = o.src.TestRecord(ctx, rec.ID, model)
				if err != nil {
					o.log.Error(fmt.Sprintf("probing %s", rec.String()), err)
					result = &source.TestResult{Message: err.Error(), Failure: source.FailNetwork}
				}
			}

			mu.Lock()
			outcomes[i] = probeOutcome{record: rec, result: result}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return outcomes
}

// probeModel picks the model a record is tested with: its configured
// test_model, falling back to the first entry of its model list.
func probeModel(rec *types.Record) (string, bool) {
	if v := rec.Get("test_model"); v != nil && fmt.Sprint(v) != "" {
		return fmt.Sprint(v), true
	}
	models := normalize.ToList(rec.Get("models"))
	if len(models) == 0 {
		return "", false
	}
	return models[0], true
}

// confirmEnable decides whether the enable step may run. Quota-only
// failures never block it; anything else needs the operator's approval
// unless the run is auto-confirmed.
func (o *Orchestrator) confirmEnable(passing, failures []probeOutcome) bool {
	if o.opts.AutoConfirm {
		return true
	}
	quotaOnly := true
	for _, f := range failures {
		if f.result.Failure != source.FailQuota {
			quotaOnly = false
			break
		}
	}
	if quotaOnly {
		if len(failures) > 0 {
			o.renderer.Info("All failures are quota-related, enabling passing records")
		}
		return true
	}
	return output.Confirm(o.in, o.renderer.Writer(),
		fmt.Sprintf("\nSome probes failed for non-quota reasons. Enable the %d passing record(s)?", len(passing)))
}

// FindKey returns every record whose credential equals the given key,
// sorted by id. Matching honors the same key field fallback the filters
// use.
func (o *Orchestrator) FindKey(ctx context.Context, key string) ([]types.Record, error) {
	records, err := o.src.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	spec := &filter.Spec{KeyFilter: &key}
	matched := filter.NewEngine(spec, o.log).Select(records)
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}
