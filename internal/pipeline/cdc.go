package pipeline

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-etl/internal/domain"
)

// CDCBatch is one simulated change-data-capture delivery: a chronological
// slice of the full raw batch, tagged with the operation it models and the
// capture time.
type CDCBatch struct {
	Records    []domain.RawRecord
	Operation  string
	CapturedAt time.Time
}

// CDCSimulator partitions one static raw batch into an "initial" and an
// "incremental" delivery by invoice timestamp. This models append-only
// ingestion from an upstream transactional source without real log-based
// capture: both deliveries carry INSERT markers only.
type CDCSimulator struct {
	ratio float64
	now   func() time.Time
	log   zerolog.Logger
}

func NewCDCSimulator(splitRatio float64, log zerolog.Logger) *CDCSimulator {
	return &CDCSimulator{ratio: splitRatio, now: time.Now, log: log}
}

// Split returns the chronologically earliest ratio share of records as the
// initial load and the remainder as the incremental load. The sort is stable,
// so the partition is lossless and non-overlapping: concatenating both sides
// and re-sorting by timestamp reproduces the input. Records whose dates do
// not parse sort first; the cleaner drops them downstream either way.
func (c *CDCSimulator) Split(raw []domain.RawRecord) (initial, incremental CDCBatch) {
	type keyed struct {
		rec domain.RawRecord
		ts  time.Time
	}
	entries := make([]keyed, len(raw))
	for i, r := range raw {
		ts, _ := parseInvoiceDate(r.InvoiceDate)
		entries[i] = keyed{rec: r, ts: ts}
	}
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].ts.Before(entries[b].ts)
	})

	sorted := make([]domain.RawRecord, len(entries))
	for i, e := range entries {
		sorted[i] = e.rec
	}

	splitIdx := int(c.ratio * float64(len(sorted)))
	capturedAt := c.now()

	initial = CDCBatch{
		Records:    sorted[:splitIdx],
		Operation:  domain.CDCInsert,
		CapturedAt: capturedAt,
	}
	incremental = CDCBatch{
		Records:    sorted[splitIdx:],
		Operation:  domain.CDCInsert,
		CapturedAt: capturedAt,
	}

	c.log.Info().
		Int("initial_records", len(initial.Records)).
		Int("incremental_records", len(incremental.Records)).
		Msg("Generated CDC batches")

	return initial, incremental
}
