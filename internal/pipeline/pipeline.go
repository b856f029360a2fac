package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-etl/internal/domain"
	"github.com/dvloznov/retail-etl/internal/logger"
)

// Config carries the orchestrator's run parameters. It is supplied at
// construction; there is no process-wide mutable configuration.
type Config struct {
	// BaseCurrency is the currency the source records are priced in.
	BaseCurrency string

	// CDCSplitRatio is the chronological share of records assigned to the
	// initial load in CDC mode.
	CDCSplitRatio float64
}

// Loader receives the fully enriched batch and the RFM profile table after
// the quality gate passes. Implementations map them onto the warehouse star
// schema; initial marks the first delivery of a run.
type Loader interface {
	Load(ctx context.Context, batch *domain.Batch, profiles []*domain.RFMProfile, initial bool) error
}

// Result is the outcome of one processed batch.
type Result struct {
	RunID    string
	Batch    *domain.Batch
	Profiles []*domain.RFMProfile
	Quality  GateReport
}

// Orchestrator sequences the transformation stages over a batch: clean,
// currency-enrich, derive (RFM + fraud in parallel), quality gate, load. On a
// hard gate failure the run halts before load; nothing partial is written.
type Orchestrator struct {
	cfg       Config
	cleaner   *Cleaner
	enricher  *CurrencyEnricher
	segmenter *RFMSegmenter
	scorer    *FraudScorer
	gate      *QualityGate
	cdc       *CDCSimulator
	loader    Loader
	log       zerolog.Logger
}

// NewOrchestrator wires the pipeline stages. loader may be nil for
// transform-only runs.
func NewOrchestrator(cfg Config, loader Loader, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		cleaner:   NewCleaner(log),
		enricher:  NewCurrencyEnricher(cfg.BaseCurrency, log),
		segmenter: NewRFMSegmenter(log),
		scorer:    NewFraudScorer(log),
		gate:      NewQualityGate(log),
		cdc:       NewCDCSimulator(cfg.CDCSplitRatio, log),
		loader:    loader,
		log:       log,
	}
}

// Run processes one raw batch end to end and returns the enriched batch, the
// RFM table, and the quality verdict.
func (o *Orchestrator) Run(ctx context.Context, raw []domain.RawRecord, rates domain.RateTable) (*Result, error) {
	state := &State{
		RunID:       uuid.NewString(),
		Raw:         raw,
		Rates:       rates,
		InitialLoad: true,
	}
	if err := o.execute(ctx, state); err != nil {
		return nil, err
	}
	return stateResult(state), nil
}

// RunCDC splits the raw batch into an initial and an incremental delivery and
// processes them independently, initial first. An incremental batch too small
// for RFM is processed without profiles rather than aborting the run.
func (o *Orchestrator) RunCDC(ctx context.Context, raw []domain.RawRecord, rates domain.RateTable) ([]*Result, error) {
	initial, incremental := o.cdc.Split(raw)

	results := make([]*Result, 0, 2)

	o.log.Info().Msg("Processing initial batch")
	initState := &State{
		RunID:       uuid.NewString(),
		Raw:         initial.Records,
		Rates:       rates,
		Operation:   initial.Operation,
		CapturedAt:  initial.CapturedAt,
		InitialLoad: true,
	}
	if err := o.execute(ctx, initState); err != nil {
		return nil, err
	}
	results = append(results, stateResult(initState))

	o.log.Info().Msg("Processing incremental batch")
	incrState := &State{
		RunID:            uuid.NewString(),
		Raw:              incremental.Records,
		Rates:            rates,
		Operation:        incremental.Operation,
		CapturedAt:       incremental.CapturedAt,
		TolerateSmallRFM: true,
	}
	if err := o.execute(ctx, incrState); err != nil {
		return nil, err
	}
	results = append(results, stateResult(incrState))

	return results, nil
}

func (o *Orchestrator) execute(ctx context.Context, state *State) error {
	ctx = logger.WithContext(ctx, o.log.With().Str("run_id", state.RunID).Logger())

	p := NewPipeline(
		&CleanStep{cleaner: o.cleaner},
		&TagStep{},
		&EnrichStep{enricher: o.enricher},
		&DeriveStep{segmenter: o.segmenter, scorer: o.scorer},
		&GateStep{gate: o.gate},
		&LoadStep{loader: o.loader},
	)
	return p.Execute(ctx, state)
}

func stateResult(state *State) *Result {
	return &Result{
		RunID:    state.RunID,
		Batch:    state.Batch,
		Profiles: state.Profiles,
		Quality:  state.Quality,
	}
}
