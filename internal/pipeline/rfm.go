package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-etl/internal/domain"
	etlerrors "github.com/dvloznov/retail-etl/internal/errors"
	"github.com/dvloznov/retail-etl/internal/stats"
)

// RFMSegmenter aggregates per-customer Recency/Frequency/Monetary metrics and
// assigns quartile-based segments. Profiles are fully recomputed from the
// current batch on every run; nothing carries over between runs.
type RFMSegmenter struct {
	log zerolog.Logger
}

func NewRFMSegmenter(log zerolog.Logger) *RFMSegmenter {
	return &RFMSegmenter{log: log}
}

// Segment produces exactly one profile per distinct customer ID in the batch.
// The recency anchor is the batch's own horizon (latest invoice + 1 day), not
// wall-clock time, so historical batches score reproducibly.
func (s *RFMSegmenter) Segment(batch *domain.Batch) ([]*domain.RFMProfile, error) {
	groups := batch.GroupByCustomer()
	if len(groups) < MinRFMCustomers {
		return nil, etlerrors.InsufficientData(
			"RFM quartile binning needs at least %d distinct customers, batch has %d",
			MinRFMCustomers, len(groups))
	}

	maxDate, _ := batch.MaxInvoiceDate()
	snapshot := maxDate.Add(24 * time.Hour)

	// Customers in ascending ID order; this is also the stable secondary
	// ordering the quantile binner falls back to on tie-heavy metrics.
	customers := make([]string, 0, len(groups))
	for id := range groups {
		customers = append(customers, id)
	}
	sort.Strings(customers)

	profiles := make([]*domain.RFMProfile, len(customers))
	recency := make([]float64, len(customers))
	frequency := make([]float64, len(customers))
	monetary := make([]float64, len(customers))

	for i, id := range customers {
		records := groups[id]

		var last time.Time
		invoices := make(map[string]struct{})
		total := domain.Decimal{}
		for _, r := range records {
			if r.InvoiceDate.After(last) {
				last = r.InvoiceDate
			}
			invoices[r.InvoiceNo] = struct{}{}
			total = total.Add(r.TotalBase)
		}

		days := int(snapshot.Sub(last).Hours() / 24)

		profiles[i] = &domain.RFMProfile{
			CustomerID: id,
			Recency:    days,
			Frequency:  len(invoices),
			Monetary:   total,
		}
		recency[i] = float64(days)
		frequency[i] = float64(len(invoices))
		monetary[i] = total.Float64()
	}

	rBuckets, err := stats.QuantileBuckets(recency, rfmBuckets)
	if err != nil {
		return nil, fmt.Errorf("binning recency: %w", err)
	}
	fBuckets, err := stats.QuantileBuckets(frequency, rfmBuckets)
	if err != nil {
		return nil, fmt.Errorf("binning frequency: %w", err)
	}
	mBuckets, err := stats.QuantileBuckets(monetary, rfmBuckets)
	if err != nil {
		return nil, fmt.Errorf("binning monetary: %w", err)
	}

	for i, p := range profiles {
		// Recency is inverted: the most recent customers (lowest days,
		// lowest bucket) get the top score.
		p.RScore = rfmBuckets + 1 - rBuckets[i]
		p.FScore = fBuckets[i]
		p.MScore = mBuckets[i]
		p.SegmentCode = fmt.Sprintf("%d%d%d", p.RScore, p.FScore, p.MScore)
		p.Score = p.RScore + p.FScore + p.MScore
		p.Segment = segmentLabel(p.Score, p.RScore, p.FScore, p.MScore)
	}

	s.log.Info().
		Int("customers", len(profiles)).
		Time("snapshot_date", snapshot).
		Msg("RFM segmentation complete")

	return profiles, nil
}

// segmentLabel maps scores to an actionable segment. Rules are evaluated in
// fixed priority order; the first match wins.
func segmentLabel(score, r, f, m int) string {
	switch {
	case score >= 11:
		return domain.SegmentBestCustomers
	case score >= 9:
		return domain.SegmentLoyalCustomers
	case f >= 4 && m >= 4:
		return domain.SegmentBigSpenders
	case score >= 7:
		return domain.SegmentPotentialLoyalists
	case r <= 1:
		return domain.SegmentLostCustomers
	case r <= 2:
		return domain.SegmentAtRisk
	default:
		return domain.SegmentRecentCustomers
	}
}
