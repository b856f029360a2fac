package domain

import (
	"time"
)

// CDC operation markers stamped onto records when a batch is split into
// simulated change-data-capture deliveries.
const (
	CDCInsert = "INSERT"
)

// RawRecord is one transaction line as ingested, before cleaning. Customer ID
// and invoice date are kept as raw strings: the source data carries customer
// IDs in float form ("17850.0") and dates in more than one layout, and the
// Cleaner owns their canonicalization.
type RawRecord struct {
	InvoiceNo   string
	StockCode   string
	Description string
	Quantity    int64
	UnitPrice   Decimal
	InvoiceDate string
	CustomerID  string
	Country     string
}

// Record is one cleaned, typed transaction line flowing through the pipeline.
// Stages only ever add derived fields; the ingested columns are never altered
// after cleaning.
type Record struct {
	InvoiceNo   string
	StockCode   string
	Description string
	Quantity    int64
	UnitPrice   Decimal
	InvoiceDate time.Time
	CustomerID  string
	Country     string

	// Derived by the currency enricher.
	TotalBase       Decimal
	TotalByCurrency map[string]Decimal

	// Derived by the fraud scorer.
	FraudSuspect bool

	// Stamped by the CDC simulator.
	CDCOperation string
	CDCTimestamp time.Time
}

// Batch is the full in-memory set of records processed together in one
// pipeline run. Ownership is handed off whole from stage to stage; no stage
// mutates a batch another stage is still producing.
type Batch struct {
	Records []*Record
}

func NewBatch(records []*Record) *Batch {
	return &Batch{Records: records}
}

func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}

// MaxInvoiceDate returns the latest invoice timestamp in the batch. The
// second return value is false for an empty batch.
func (b *Batch) MaxInvoiceDate() (time.Time, bool) {
	var max time.Time
	found := false
	for _, r := range b.Records {
		if !found || r.InvoiceDate.After(max) {
			max = r.InvoiceDate
			found = true
		}
	}
	return max, found
}

// GroupByCustomer groups records by customer ID, preserving batch order
// within each group.
func (b *Batch) GroupByCustomer() map[string][]*Record {
	groups := make(map[string][]*Record)
	for _, r := range b.Records {
		groups[r.CustomerID] = append(groups[r.CustomerID], r)
	}
	return groups
}

// GroupByStockCode groups records by product code, preserving batch order
// within each group.
func (b *Batch) GroupByStockCode() map[string][]*Record {
	groups := make(map[string][]*Record)
	for _, r := range b.Records {
		groups[r.StockCode] = append(groups[r.StockCode], r)
	}
	return groups
}

// DistinctCustomers returns the number of distinct customer IDs in the batch.
func (b *Batch) DistinctCustomers() int {
	seen := make(map[string]struct{})
	for _, r := range b.Records {
		seen[r.CustomerID] = struct{}{}
	}
	return len(seen)
}

// RateTable maps a currency code to its positive multiplier relative to the
// base currency. It always contains the base currency mapped to 1.0 and is
// immutable within a pipeline run.
type RateTable map[string]float64
