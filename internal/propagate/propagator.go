// Package propagate copies or compares selected fields between two
// independently configured gateways. One source record is elected; its
// current values become the rule values applied to every matched target.
package propagate

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/chanctl/chanctl/internal/errors"
	"github.com/chanctl/chanctl/internal/filter"
	"github.com/chanctl/chanctl/internal/logger"
	"github.com/chanctl/chanctl/internal/normalize"
	"github.com/chanctl/chanctl/internal/output"
	"github.com/chanctl/chanctl/internal/patch"
	"github.com/chanctl/chanctl/internal/reconcile"
	"github.com/chanctl/chanctl/internal/source"
	"github.com/chanctl/chanctl/pkg/types"
)

// Fields that never propagate across gateways: the id belongs to the
// target, and credentials are never copied.
var skippedFields = map[string]bool{"id": true, "key": true, "apikey": true}

// Propagator runs cross-gateway actions. The target side reuses the full
// reconciliation pipeline; the source side is read-only.
type Propagator struct {
	src        source.Source
	tgt        source.Source
	targetOrch *reconcile.Orchestrator
	renderer   *output.Renderer
	traits     *patch.Traits
	log        logger.Logger
}

// New creates a propagator. targetOrch must be built over tgt.
func New(src, tgt source.Source, targetOrch *reconcile.Orchestrator,
	renderer *output.Renderer, log logger.Logger) *Propagator {
	return &Propagator{
		src:        src,
		tgt:        tgt,
		targetOrch: targetOrch,
		renderer:   renderer,
		traits:     patch.DefaultTraits(),
		log:        log,
	}
}

// fetchBoth retrieves the two collections concurrently.
func (p *Propagator) fetchBoth(ctx context.Context) (srcRecords, tgtRecords []types.Record, err error) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		srcRecords, err = p.src.FetchAll(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		tgtRecords, err = p.tgt.FetchAll(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return srcRecords, tgtRecords, nil
}

// electSource applies the source spec and returns exactly one record.
// Zero matches is a hard error; extra matches are discarded with a
// warning naming them.
func (p *Propagator) electSource(records []types.Record, spec *filter.Spec) (*types.Record, error) {
	matched := filter.NewEngine(spec, p.log).Select(records)
	if len(matched) == 0 {
		return nil, errors.Newf(errors.KindConfig,
			"source filter matched no records (%s)", spec.String())
	}
	if len(matched) > 1 {
		discarded := make([]string, 0, len(matched)-1)
		for i := 1; i < len(matched); i++ {
			discarded = append(discarded, matched[i].String())
		}
		p.renderer.Warn(fmt.Sprintf("source filter matched %d records, using %s and ignoring %s",
			len(matched), matched[0].String(), strings.Join(discarded, ", ")))
	}
	return &matched[0], nil
}

// rules synthesizes one rule per copied field from the source record's
// current values.
func (p *Propagator) rules(src *types.Record, fields []string, mode patch.Mode) []patch.Rule {
	rules := make([]patch.Rule, 0, len(fields))
	for _, f := range fields {
		if skippedFields[f] {
			p.log.WithField("field", f).Warn("field is never propagated, skipping")
			continue
		}
		if !src.Has(f) {
			p.log.WithField("field", f).Warn("source record has no such field, skipping")
			continue
		}
		rules = append(rules, patch.Rule{
			Field:   f,
			Mode:    mode,
			Value:   src.Get(f),
			Enabled: true,
		})
	}
	return rules
}

// Copy propagates the configured fields from the elected source record
// into every matched target record, then runs the standard confirm,
// snapshot, and apply pipeline on the target gateway.
func (p *Propagator) Copy(ctx context.Context, srcSpec, tgtSpec *filter.Spec,
	fields []string, mode patch.Mode, targetIdentity string) (*reconcile.Report, error) {
	if len(fields) == 0 {
		return nil, errors.New(errors.KindConfig, "fields_to_copy is empty")
	}

	srcRecords, tgtRecords, err := p.fetchBoth(ctx)
	if err != nil {
		return nil, err
	}
	p.renderer.Info(fmt.Sprintf("source: %d records, target: %d records",
		len(srcRecords), len(tgtRecords)))

	elected, err := p.electSource(srcRecords, srcSpec)
	if err != nil {
		return nil, err
	}
	p.renderer.Info(fmt.Sprintf("copying from %s", elected.String()))

	plan := p.targetOrch.BuildPlan(tgtRecords, tgtSpec, p.rules(elected, fields, mode))
	return p.targetOrch.Execute(ctx, plan, targetIdentity, "")
}

// Compare prints per-field differences between the elected source record
// and every matched target record. Read-only: no patch is ever produced.
func (p *Propagator) Compare(ctx context.Context, srcSpec, tgtSpec *filter.Spec, fields []string) (int, error) {
	if len(fields) == 0 {
		return 0, errors.New(errors.KindConfig, "fields_to_compare is empty")
	}

	srcRecords, tgtRecords, err := p.fetchBoth(ctx)
	if err != nil {
		return 0, err
	}

	elected, err := p.electSource(srcRecords, srcSpec)
	if err != nil {
		return 0, err
	}

	matched := filter.NewEngine(tgtSpec, p.log).Select(tgtRecords)
	if len(matched) == 0 {
		p.renderer.Info("no target records matched, nothing to compare")
		return 0, nil
	}

	differences := 0
	for i := range matched {
		tgt := &matched[i]
		for _, field := range fields {
			if skippedFields[field] {
				continue
			}
			srcValue := elected.Get(field)
			tgtValue := tgt.Get(field)
			if p.canonicalEqual(field, srcValue, tgtValue) {
				continue
			}
			differences++
			p.renderer.Compare(tgt, field, srcValue, tgtValue)
		}
	}
	if differences == 0 {
		p.renderer.Info("all compared fields match")
	}
	return differences, nil
}

// Counts fetches both collections and reports their sizes.
func (p *Propagator) Counts(ctx context.Context) (int, int, error) {
	srcRecords, tgtRecords, err := p.fetchBoth(ctx)
	if err != nil {
		return 0, 0, err
	}

	p.renderer.Info(fmt.Sprintf("source: %d records", len(srcRecords)))
	p.renderer.Info(fmt.Sprintf("target: %d records", len(tgtRecords)))
	if len(srcRecords) == len(tgtRecords) {
		p.renderer.Info("record counts match")
	} else {
		diff := len(srcRecords) - len(tgtRecords)
		if diff < 0 {
			diff = -diff
		}
		p.renderer.Info(fmt.Sprintf("record counts differ by %d", diff))
	}
	return len(srcRecords), len(tgtRecords), nil
}

// canonicalEqual compares two field values by logical type, ignoring wire
// representation differences between the two gateways.
func (p *Propagator) canonicalEqual(field string, a, b any) bool {
	switch {
	case p.traits.IsList(field):
		if p.traits.IsOrderSensitive(field) {
			la, lb := normalize.ToList(a), normalize.ToList(b)
			if len(la) != len(lb) {
				return false
			}
			for i := range la {
				if la[i] != lb[i] {
					return false
				}
			}
			return true
		}
		return normalize.ToSet(a).Equal(normalize.ToSet(b))
	case p.traits.IsMap(field):
		ma := normalize.ToMap(a, field, p.log)
		mb := normalize.ToMap(b, field, p.log)
		if len(ma) != len(mb) {
			return false
		}
		for k, v := range ma {
			if fmt.Sprint(mb[k]) != fmt.Sprint(v) {
				return false
			}
		}
		return true
	default:
		if isNil(a) && isNil(b) {
			return true
		}
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
}

func isNil(v any) bool {
	return v == nil || v == ""
}
