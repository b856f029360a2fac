package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func batchOf(records ...*Record) *Batch {
	return NewBatch(records)
}

func rec(customer, stock string, date time.Time) *Record {
	return &Record{CustomerID: customer, StockCode: stock, InvoiceDate: date}
}

func TestBatchMaxInvoiceDate(t *testing.T) {
	d1 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

	max, ok := batchOf(rec("A", "S1", d1), rec("B", "S2", d2)).MaxInvoiceDate()
	assert.True(t, ok)
	assert.Equal(t, d2, max)

	_, ok = batchOf().MaxInvoiceDate()
	assert.False(t, ok)
}

func TestBatchGrouping(t *testing.T) {
	d := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	b := batchOf(
		rec("A", "S1", d),
		rec("A", "S2", d),
		rec("B", "S1", d),
	)

	byCustomer := b.GroupByCustomer()
	assert.Len(t, byCustomer, 2)
	assert.Len(t, byCustomer["A"], 2)

	byStock := b.GroupByStockCode()
	assert.Len(t, byStock, 2)
	assert.Len(t, byStock["S1"], 2)

	assert.Equal(t, 2, b.DistinctCustomers())
}

func TestBatchNilSafety(t *testing.T) {
	var b *Batch
	assert.Equal(t, 0, b.Len())
}
