// Package reconcile drives a full run: fetch, filter, diff, preview,
// confirm, snapshot, apply, report.
package reconcile

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chanctl/chanctl/internal/errors"
	"github.com/chanctl/chanctl/internal/filter"
	"github.com/chanctl/chanctl/internal/logger"
	"github.com/chanctl/chanctl/internal/output"
	"github.com/chanctl/chanctl/internal/patch"
	"github.com/chanctl/chanctl/internal/snapshot"
	"github.com/chanctl/chanctl/internal/source"
	"github.com/chanctl/chanctl/pkg/types"
)

// Options are the per-run switches.
type Options struct {
	// AutoConfirm skips interactive prompts, approving every boundary.
	AutoConfirm bool
	// DryRun stops after the preview; nothing is written anywhere.
	DryRun bool
	// Concurrency bounds simultaneous in-flight patch calls.
	Concurrency int
}

// PlanEntry is one record scheduled for mutation.
type PlanEntry struct {
	Record  types.Record
	Patch   *types.Patch
	Changes []output.FieldChange
}

// Plan is the outcome of the fetch/filter/diff phases.
type Plan struct {
	Entries   []PlanEntry
	Unchanged int
}

// Report aggregates one run's apply outcomes.
type Report struct {
	Results      []types.PatchResult
	Succeeded    int
	Failed       int
	Unchanged    int
	SnapshotPath string
	Cancelled    bool
}

// Err returns the run's terminal error: nil unless a record failed.
func (r *Report) Err() error {
	if r.Failed > 0 {
		return errors.Newf(errors.KindPatch, "%d record update(s) failed", r.Failed)
	}
	return nil
}

// Orchestrator wires one source to the diff engine and the snapshot store.
type Orchestrator struct {
	src      source.Source
	snaps    *snapshot.Manager
	renderer *output.Renderer
	in       io.Reader
	log      logger.Logger
	opts     Options
	calc     *patch.Calculator
}

// New creates an orchestrator. in feeds interactive confirmations.
func New(src source.Source, snaps *snapshot.Manager, renderer *output.Renderer,
	in io.Reader, log logger.Logger, opts Options) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Orchestrator{
		src:      src,
		snaps:    snaps,
		renderer: renderer,
		in:       in,
		log:      log,
		opts:     opts,
		calc:     patch.NewCalculator(src, patch.DefaultTraits(), log),
	}
}

// Run performs the read-only phases: fetch the collection, filter it, and
// diff every matched record against the rules. An empty plan is a normal
// outcome, not an error.
func (o *Orchestrator) Run(ctx context.Context, spec *filter.Spec, rules []patch.Rule) (*Plan, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	records, err := o.src.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	o.log.WithField("records", len(records)).Info("collection fetched")

	return o.BuildPlan(records, spec, rules), nil
}

// BuildPlan filters already-fetched records and diffs every match against
// the rules. Used directly by callers that fetch on their own schedule.
func (o *Orchestrator) BuildPlan(records []types.Record, spec *filter.Spec, rules []patch.Rule) *Plan {
	matched := filter.NewEngine(spec, o.log).Select(records)
	o.log.WithFields(map[string]interface{}{
		"matched": len(matched),
		"spec":    spec.String(),
	}).Info("records selected")

	plan := &Plan{}
	for i := range matched {
		rec := matched[i]
		p := o.calc.Compute(&rec, rules)
		if p.IsEmpty() {
			plan.Unchanged++
			continue
		}
		plan.Entries = append(plan.Entries, PlanEntry{
			Record:  rec,
			Patch:   p,
			Changes: fieldChanges(&rec, p),
		})
	}
	return plan
}

// Execute carries a plan through preview, confirmation, snapshot, and
// apply. rulesPath, when set, is backed up alongside the snapshot so an
// undo can later explain what the run changed.
func (o *Orchestrator) Execute(ctx context.Context, plan *Plan, identity, rulesPath string) (*Report, error) {
	report := &Report{Unchanged: plan.Unchanged}

	if len(plan.Entries) == 0 {
		o.renderer.Info(fmt.Sprintf("Nothing to do: 0 records need changes (%d already up to date)", plan.Unchanged))
		return report, nil
	}

	o.renderer.PreviewHeader(len(plan.Entries), plan.Unchanged)
	for i := range plan.Entries {
		o.renderer.RecordChanges(&plan.Entries[i].Record, plan.Entries[i].Changes)
	}

	if o.opts.DryRun {
		o.renderer.Info("\nDry run: no changes applied")
		return report, nil
	}

	if !o.opts.AutoConfirm {
		if !output.Confirm(o.in, o.renderer.Writer(), fmt.Sprintf("\nApply changes to %d record(s)?", len(plan.Entries))) {
			o.renderer.Info("Cancelled")
			report.Cancelled = true
			return report, nil
		}
	}

	if !o.captureSnapshot(plan, identity, rulesPath, report) {
		report.Cancelled = true
		return report, nil
	}

	report.Results = o.apply(ctx, plan)
	for _, res := range report.Results {
		if res.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	o.renderer.Report(report.Results, report.Unchanged, report.SnapshotPath)
	return report, report.Err()
}

// captureSnapshot writes the pre-mutation snapshot and the rules backup.
// A snapshot failure does not abort the run by itself, but continuing
// without an undo path needs explicit approval.
func (o *Orchestrator) captureSnapshot(plan *Plan, identity, rulesPath string, report *Report) bool {
	records := make([]types.Record, len(plan.Entries))
	for i := range plan.Entries {
		records[i] = *plan.Entries[i].Record.Clone()
	}

	snap, path, err := o.snaps.Capture(records, identity)
	if err != nil {
		o.log.Error("snapshot failed", err)
		o.renderer.Warn(fmt.Sprintf("could not write undo snapshot: %v", err))
		if o.opts.AutoConfirm {
			o.renderer.Warn("continuing without undo (auto-confirmed)")
			return true
		}
		return output.Confirm(o.in, o.renderer.Writer(), "Continue without undo?")
	}
	report.SnapshotPath = path

	if rulesPath != "" {
		if _, err := o.snaps.BackupRules(rulesPath, snap.Timestamp); err != nil {
			o.log.Error("rules backup failed", err)
			o.renderer.Warn(fmt.Sprintf("could not back up update rules: %v", err))
		}
	}
	return true
}

// apply dispatches one patch per entry under the concurrency gate. Each
// task owns its own payload; result order follows plan order.
func (o *Orchestrator) apply(ctx context.Context, plan *Plan) []types.PatchResult {
	results := make([]types.PatchResult, len(plan.Entries))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)

	for i := range plan.Entries {
		i := i
		g.Go(func() error {
			entry := &plan.Entries[i]
			err := o.src.ApplyPatch(ctx, entry.Patch)

			result := types.PatchResult{
				ID:      entry.Record.ID,
				Name:    entry.Record.Name,
				Success: err == nil,
			}
			if err != nil {
				result.Message = err.Error()
				o.log.Error(fmt.Sprintf("updating %s", entry.Record.String()), err)
			} else {
				result.Message = "updated"
				o.log.WithField("record", entry.Record.String()).Info("record updated")
			}

			mu.Lock()
			results[i] = result
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

// fieldChanges builds the preview rows for one patch, sorted by field.
func fieldChanges(rec *types.Record, p *types.Patch) []output.FieldChange {
	changes := make([]output.FieldChange, 0, len(p.Changed))
	for _, field := range p.Fields() {
		changes = append(changes, output.FieldChange{
			Field:  field,
			Before: rec.Get(field),
			After:  p.Changed[field],
		})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	return changes
}
