package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/retail-etl/internal/domain"
)

func fraudRecord(t *testing.T, customer, invoice, stock string, price, total string, date time.Time) *domain.Record {
	t.Helper()
	return &domain.Record{
		InvoiceNo:   invoice,
		StockCode:   stock,
		Quantity:    1,
		UnitPrice:   dec(t, price),
		InvoiceDate: date,
		CustomerID:  customer,
		TotalBase:   dec(t, total),
	}
}

func TestFraudScorerValueAndPriceAnomaly(t *testing.T) {
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := domain.NewBatch([]*domain.Record{
		fraudRecord(t, "C1", "1", "P1", "10.0", "10.0", day),
		fraudRecord(t, "C1", "2", "P1", "10.0", "10.0", day),
		fraudRecord(t, "C1", "3", "P1", "50.0", "5000.0", day),
	})

	NewFraudScorer(testlog()).Score(batch)

	assert.False(t, batch.Records[0].FraudSuspect)
	assert.False(t, batch.Records[1].FraudSuspect)
	assert.True(t, batch.Records[2].FraudSuspect)
}

func TestFraudScorerVelocityAnomaly(t *testing.T) {
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	var records []*domain.Record
	// Eleven distinct invoices for one customer on a single day, all at the
	// product's normal price so only the velocity rule can fire.
	for i := 0; i < 11; i++ {
		records = append(records, fraudRecord(t, "C1", fmt.Sprintf("INV%d", i), "P1", "10.0", "10.0", day))
	}
	// A second customer below the limit on the same day.
	for i := 0; i < 3; i++ {
		records = append(records, fraudRecord(t, "C2", fmt.Sprintf("OTH%d", i), "P1", "10.0", "10.0", day))
	}
	batch := domain.NewBatch(records)

	NewFraudScorer(testlog()).Score(batch)

	for i := 0; i < 11; i++ {
		assert.True(t, batch.Records[i].FraudSuspect, "record %d", i)
	}
	for i := 11; i < 14; i++ {
		assert.False(t, batch.Records[i].FraudSuspect, "record %d", i)
	}
}

func TestFraudScorerVelocityCountsDistinctInvoices(t *testing.T) {
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	var records []*domain.Record
	// Twenty lines but only two distinct invoices: velocity must not fire.
	for i := 0; i < 20; i++ {
		records = append(records, fraudRecord(t, "C1", fmt.Sprintf("INV%d", i%2), "P1", "10.0", "10.0", day))
	}
	batch := domain.NewBatch(records)

	NewFraudScorer(testlog()).Score(batch)

	for _, r := range batch.Records {
		assert.False(t, r.FraudSuspect)
	}
}

func TestFraudScorerNormalBatchUnflagged(t *testing.T) {
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := domain.NewBatch([]*domain.Record{
		fraudRecord(t, "C1", "1", "P1", "10.0", "20.0", day),
		fraudRecord(t, "C2", "2", "P1", "11.0", "22.0", day.AddDate(0, 0, 1)),
		fraudRecord(t, "C3", "3", "P2", "5.0", "15.0", day.AddDate(0, 0, 2)),
		fraudRecord(t, "C4", "4", "P2", "6.0", "18.0", day.AddDate(0, 0, 3)),
	})

	NewFraudScorer(testlog()).Score(batch)

	for _, r := range batch.Records {
		assert.False(t, r.FraudSuspect)
	}
}

func TestFraudScorerEmptyBatch(t *testing.T) {
	batch := domain.NewBatch(nil)
	require.NotPanics(t, func() {
		NewFraudScorer(testlog()).Score(batch)
	})
}
