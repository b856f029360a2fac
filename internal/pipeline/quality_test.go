package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/retail-etl/internal/domain"
)

func qualityRecord(t *testing.T, invoice, stock string, qty int64, total string, date time.Time) *domain.Record {
	t.Helper()
	return &domain.Record{
		InvoiceNo:   invoice,
		StockCode:   stock,
		Quantity:    qty,
		UnitPrice:   dec(t, "1.0"),
		InvoiceDate: date,
		CustomerID:  "100",
		TotalBase:   dec(t, total),
		TotalByCurrency: map[string]domain.Decimal{
			"USD": dec(t, total).Mul(dec(t, "1.27")),
		},
	}
}

func gateAt(now time.Time) *QualityGate {
	return NewQualityGateAt(func() time.Time { return now }, testlog())
}

func TestQualityGatePasses(t *testing.T) {
	now := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	batch := domain.NewBatch([]*domain.Record{
		qualityRecord(t, "1", "A", 2, "20.0", now.AddDate(0, 0, -1)),
		qualityRecord(t, "2", "B", 1, "10.0", now.AddDate(0, 0, -2)),
	})

	report := gateAt(now).Run(batch)

	assert.True(t, report.Passed)
	assert.Empty(t, report.Failures())
}

func TestQualityGateZeroQuantityFails(t *testing.T) {
	now := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	batch := domain.NewBatch([]*domain.Record{
		qualityRecord(t, "1", "A", 0, "20.0", now.AddDate(0, 0, -1)),
	})

	report := gateAt(now).Run(batch)

	require.False(t, report.Passed)
	failures := report.Failures()
	require.NotEmpty(t, failures)

	found := false
	for _, d := range failures {
		if d.Check == "quantity_check" {
			found = true
			assert.Equal(t, "quantity", d.Column)
			assert.Equal(t, 1, d.Violations)
		}
	}
	assert.True(t, found, "expected a diagnostic naming the quantity check")
}

func TestQualityGateMissingIdentifiersFail(t *testing.T) {
	now := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	rec := qualityRecord(t, "", "", 1, "10.0", now.AddDate(0, 0, -1))
	rec.CustomerID = ""

	report := gateAt(now).Run(domain.NewBatch([]*domain.Record{rec}))

	require.False(t, report.Passed)
	columns := make(map[string]bool)
	for _, d := range report.Failures() {
		columns[d.Column] = true
	}
	assert.True(t, columns["invoice_no"])
	assert.True(t, columns["customer_id"])
	assert.True(t, columns["stock_code"])
}

func TestQualityGateFutureDateFails(t *testing.T) {
	now := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	batch := domain.NewBatch([]*domain.Record{
		qualityRecord(t, "1", "A", 1, "10.0", now.AddDate(0, 0, 7)),
	})

	report := gateAt(now).Run(batch)

	require.False(t, report.Passed)
	assert.Equal(t, "date_sanity_check", report.Failures()[0].Check)
}

func TestQualityGateDeadCurrencyColumnFails(t *testing.T) {
	now := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []*domain.Record{
		qualityRecord(t, "1", "A", 1, "10.0", now.AddDate(0, 0, -1)),
		qualityRecord(t, "2", "B", 1, "20.0", now.AddDate(0, 0, -1)),
	}
	for _, r := range records {
		r.TotalByCurrency["USD"] = domain.NewDecimalFromInt64(0)
	}

	report := gateAt(now).Run(domain.NewBatch(records))

	require.False(t, report.Passed)
	found := false
	for _, d := range report.Failures() {
		if d.Check == "currency_conversion_check" {
			found = true
			assert.Equal(t, "total_USD", d.Column)
		}
	}
	assert.True(t, found)
}

func TestQualityGateDuplicateLinesWarnOnly(t *testing.T) {
	now := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	batch := domain.NewBatch([]*domain.Record{
		qualityRecord(t, "1", "A", 1, "10.0", now.AddDate(0, 0, -1)),
		qualityRecord(t, "1", "A", 2, "20.0", now.AddDate(0, 0, -1)),
	})

	report := gateAt(now).Run(batch)

	assert.True(t, report.Passed, "duplicate invoice lines are a soft warning")
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "invoice_line_uniqueness", report.Diagnostics[0].Check)
	assert.False(t, report.Diagnostics[0].Hard)
	assert.Equal(t, 1, report.Diagnostics[0].Violations)
}

func TestQualityGateEmptyBatchPasses(t *testing.T) {
	report := gateAt(time.Now()).Run(domain.NewBatch(nil))
	assert.True(t, report.Passed)
}
