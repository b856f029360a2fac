package pipeline

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/retail-etl/internal/domain"
)

func TestCDCSplit80_20(t *testing.T) {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	raw := make([]domain.RawRecord, 100)
	for i := range raw {
		raw[i] = rawRecord(t, fmt.Sprintf("INV%03d", i), "A", "100", 1, "1.0",
			base.AddDate(0, 0, i).Format("2006-01-02 15:04:05"))
	}
	// Shuffle deterministically so the split has to sort.
	shuffled := make([]domain.RawRecord, 0, len(raw))
	for i := 0; i < len(raw); i += 2 {
		shuffled = append(shuffled, raw[i])
	}
	for i := 1; i < len(raw); i += 2 {
		shuffled = append(shuffled, raw[i])
	}

	initial, incremental := NewCDCSimulator(0.8, testlog()).Split(shuffled)

	require.Len(t, initial.Records, 80)
	require.Len(t, incremental.Records, 20)

	// The initial batch holds exactly the 80 chronologically earliest records.
	for _, r := range initial.Records {
		assert.Less(t, r.InvoiceNo, "INV080")
	}
	for _, r := range incremental.Records {
		assert.GreaterOrEqual(t, r.InvoiceNo, "INV080")
	}

	// Both sub-batches are tagged for capture.
	assert.Equal(t, domain.CDCInsert, initial.Operation)
	assert.Equal(t, domain.CDCInsert, incremental.Operation)
	assert.False(t, initial.CapturedAt.IsZero())

	// The partition is lossless and non-overlapping: re-sorting the
	// concatenation reproduces the original ordered sequence.
	combined := append(append([]domain.RawRecord{}, initial.Records...), incremental.Records...)
	sort.SliceStable(combined, func(a, b int) bool {
		return combined[a].InvoiceDate < combined[b].InvoiceDate
	})
	require.Len(t, combined, 100)
	for i, r := range combined {
		assert.Equal(t, fmt.Sprintf("INV%03d", i), r.InvoiceNo)
	}
}

func TestCDCSplitTinyBatch(t *testing.T) {
	raw := []domain.RawRecord{
		rawRecord(t, "1", "A", "100", 1, "1.0", "2023-01-01"),
		rawRecord(t, "2", "A", "100", 1, "1.0", "2023-01-02"),
		rawRecord(t, "3", "A", "100", 1, "1.0", "2023-01-03"),
		rawRecord(t, "4", "A", "100", 1, "1.0", "2023-01-04"),
	}

	initial, incremental := NewCDCSimulator(0.8, testlog()).Split(raw)

	assert.Len(t, initial.Records, 3)
	assert.Len(t, incremental.Records, 1)
}

func TestCDCSplitEmpty(t *testing.T) {
	initial, incremental := NewCDCSimulator(0.8, testlog()).Split(nil)
	assert.Empty(t, initial.Records)
	assert.Empty(t, incremental.Records)
}
