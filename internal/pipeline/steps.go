package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/retail-etl/internal/domain"
	etlerrors "github.com/dvloznov/retail-etl/internal/errors"
	"github.com/dvloznov/retail-etl/internal/logger"
)

// Step represents a single step in the ETL pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State holds the shared state across all pipeline steps. Each step consumes
// what its predecessor produced; ownership of the batch passes whole from
// step to step.
type State struct {
	RunID string

	Raw   []domain.RawRecord
	Rates domain.RateTable

	Batch    *domain.Batch
	Profiles []*domain.RFMProfile
	Quality  GateReport

	// CDC metadata; empty Operation means a plain (non-CDC) run.
	Operation  string
	CapturedAt time.Time

	// TolerateSmallRFM lets an undersized CDC increment skip segmentation
	// instead of aborting the run.
	TolerateSmallRFM bool

	// InitialLoad tells the loader whether this is the first delivery of
	// the run (schema bootstrap, full dimension refresh).
	InitialLoad bool
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// CleanStep filters and normalizes the raw rows into a valid batch.
type CleanStep struct {
	cleaner *Cleaner
}

func (s *CleanStep) Execute(ctx context.Context, state *State) error {
	state.Batch = s.cleaner.Clean(state.Raw)
	return nil
}

// TagStep stamps CDC metadata onto every cleaned record. A no-op outside CDC
// mode.
type TagStep struct{}

func (s *TagStep) Execute(ctx context.Context, state *State) error {
	if state.Operation == "" {
		return nil
	}
	for _, r := range state.Batch.Records {
		r.CDCOperation = state.Operation
		r.CDCTimestamp = state.CapturedAt
	}
	return nil
}

// EnrichStep derives the per-currency totals.
type EnrichStep struct {
	enricher *CurrencyEnricher
}

func (s *EnrichStep) Execute(ctx context.Context, state *State) error {
	return s.enricher.Enrich(state.Batch, state.Rates)
}

// DeriveStep runs RFM segmentation and fraud scoring concurrently. Both see
// the same currency-enriched batch; the scorer writes only the derived
// fraud flag, which the segmenter never reads, so neither observes the
// other's work.
type DeriveStep struct {
	segmenter *RFMSegmenter
	scorer    *FraudScorer
}

func (s *DeriveStep) Execute(ctx context.Context, state *State) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profiles, err := s.segmenter.Segment(state.Batch)
		if err != nil {
			if state.TolerateSmallRFM && etlerrors.IsInsufficientData(err) {
				log := logger.FromContext(ctx)
				log.Warn().Err(err).
					Msg("Skipping RFM for undersized batch")
				return nil
			}
			return err
		}
		state.Profiles = profiles
		return nil
	})

	g.Go(func() error {
		s.scorer.Score(state.Batch)
		return nil
	})

	return g.Wait()
}

// GateStep validates the enriched batch and halts the pipeline before any
// load when a hard check fails.
type GateStep struct {
	gate *QualityGate
}

func (s *GateStep) Execute(ctx context.Context, state *State) error {
	state.Quality = s.gate.Run(state.Batch)
	if state.Quality.Passed {
		return nil
	}

	failures := state.Quality.Failures()
	parts := make([]string, len(failures))
	for i, d := range failures {
		parts[i] = fmt.Sprintf("%s on %s (%d rows)", d.Check, d.Column, d.Violations)
	}
	return etlerrors.QualityGate("%d hard checks failed: %s", len(failures), strings.Join(parts, "; "))
}

// LoadStep hands the enriched batch and the RFM table to the warehouse
// loader. Skipped when no loader is configured (transform-only runs).
type LoadStep struct {
	loader Loader
}

func (s *LoadStep) Execute(ctx context.Context, state *State) error {
	if s.loader == nil {
		log := logger.FromContext(ctx)
		log.Debug().Msg("No warehouse loader configured; skipping load")
		return nil
	}
	if err := s.loader.Load(ctx, state.Batch, state.Profiles, state.InitialLoad); err != nil {
		return fmt.Errorf("warehouse load: %w", err)
	}
	return nil
}
