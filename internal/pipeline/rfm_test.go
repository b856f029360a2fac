package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/retail-etl/internal/domain"
	etlerrors "github.com/dvloznov/retail-etl/internal/errors"
)

// rfmRecord builds an enriched record with the given base total.
func rfmRecord(t *testing.T, customer, invoice string, date time.Time, total string) *domain.Record {
	t.Helper()
	return &domain.Record{
		InvoiceNo:   invoice,
		StockCode:   "SKU1",
		Quantity:    1,
		UnitPrice:   dec(t, total),
		InvoiceDate: date,
		CustomerID:  customer,
		TotalBase:   dec(t, total),
	}
}

func TestRFMSegmenterProfiles(t *testing.T) {
	maxDate := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	batch := domain.NewBatch([]*domain.Record{
		rfmRecord(t, "A", "1", maxDate, "1000"),
		rfmRecord(t, "B", "2", maxDate.AddDate(0, 0, -10), "500"),
		rfmRecord(t, "C", "3", maxDate.AddDate(0, 0, -50), "100"),
		rfmRecord(t, "D", "4", maxDate.AddDate(0, 0, -100), "10"),
	})

	profiles, err := NewRFMSegmenter(testlog()).Segment(batch)
	require.NoError(t, err)
	require.Len(t, profiles, 4)

	byID := make(map[string]*domain.RFMProfile)
	for _, p := range profiles {
		byID[p.CustomerID] = p
	}
	require.Len(t, byID, 4, "one profile per distinct customer")

	// Recency anchors to the batch horizon: a purchase on the latest day is
	// one day old.
	assert.Equal(t, 1, byID["A"].Recency)
	assert.Equal(t, 11, byID["B"].Recency)
	assert.Equal(t, 51, byID["C"].Recency)
	assert.Equal(t, 101, byID["D"].Recency)

	for _, p := range profiles {
		assert.Equal(t, 1, p.Frequency)
		assert.GreaterOrEqual(t, p.Score, 3)
		assert.LessOrEqual(t, p.Score, 12)
		assert.Len(t, p.SegmentCode, 3)
		assert.NotEmpty(t, p.Segment)
	}

	// Most recent + highest spend customer tops both R and M quartiles.
	assert.Equal(t, 4, byID["A"].RScore)
	assert.Equal(t, 4, byID["A"].MScore)
	// Oldest, lowest-spend customer bottoms them.
	assert.Equal(t, 1, byID["D"].RScore)
	assert.Equal(t, 1, byID["D"].MScore)
}

func TestRFMSegmenterFrequencyCountsDistinctInvoices(t *testing.T) {
	maxDate := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	batch := domain.NewBatch([]*domain.Record{
		rfmRecord(t, "A", "1", maxDate, "10"),
		rfmRecord(t, "A", "1", maxDate, "20"), // same invoice, second line
		rfmRecord(t, "A", "2", maxDate.AddDate(0, 0, -1), "30"),
		rfmRecord(t, "B", "3", maxDate.AddDate(0, 0, -5), "40"),
		rfmRecord(t, "C", "4", maxDate.AddDate(0, 0, -9), "50"),
		rfmRecord(t, "D", "5", maxDate.AddDate(0, 0, -20), "60"),
	})

	profiles, err := NewRFMSegmenter(testlog()).Segment(batch)
	require.NoError(t, err)

	byID := make(map[string]*domain.RFMProfile)
	for _, p := range profiles {
		byID[p.CustomerID] = p
	}

	assert.Equal(t, 2, byID["A"].Frequency)
	assert.Equal(t, 1, byID["B"].Frequency)
	assert.Equal(t, 0, byID["A"].Monetary.Cmp(dec(t, "60")))
}

func TestRFMSegmenterInsufficientCustomers(t *testing.T) {
	maxDate := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	batch := domain.NewBatch([]*domain.Record{
		rfmRecord(t, "A", "1", maxDate, "10"),
		rfmRecord(t, "B", "2", maxDate, "20"),
		rfmRecord(t, "C", "3", maxDate, "30"),
	})

	_, err := NewRFMSegmenter(testlog()).Segment(batch)
	require.Error(t, err)
	assert.True(t, etlerrors.IsInsufficientData(err))
}

func TestRFMSegmenterTiedFrequencies(t *testing.T) {
	// Every customer has frequency 1: the binner must still assign four
	// distinct F buckets via the stable rank fallback.
	maxDate := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	var records []*domain.Record
	for i, id := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		records = append(records, rfmRecord(t, id, id, maxDate.AddDate(0, 0, -i), "100"))
	}

	profiles, err := NewRFMSegmenter(testlog()).Segment(domain.NewBatch(records))
	require.NoError(t, err)

	fScores := make(map[int]int)
	for _, p := range profiles {
		fScores[p.FScore]++
	}
	assert.Len(t, fScores, 4)
}

func TestSegmentLabelPriority(t *testing.T) {
	tests := []struct {
		name          string
		score, r, f, m int
		want          string
	}{
		{"best", 12, 4, 4, 4, domain.SegmentBestCustomers},
		{"best lower bound", 11, 4, 4, 3, domain.SegmentBestCustomers},
		{"loyal", 9, 3, 3, 3, domain.SegmentLoyalCustomers},
		{"big spenders beat potential loyalists", 8, 1, 4, 4, domain.SegmentBigSpenders},
		{"potential loyalist", 7, 3, 2, 2, domain.SegmentPotentialLoyalists},
		{"lost", 6, 1, 2, 3, domain.SegmentLostCustomers},
		{"at risk", 6, 2, 2, 2, domain.SegmentAtRisk},
		{"recent", 6, 3, 2, 1, domain.SegmentRecentCustomers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, segmentLabel(tt.score, tt.r, tt.f, tt.m))
		})
	}
}
