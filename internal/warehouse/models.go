package warehouse

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// DimDateRow represents one calendar day in the dim_date table. The key is
// the YYYYMMDD integer form of the date.
type DimDateRow struct {
	DateKey int64      `bigquery:"date_key"` // REQUIRED
	Date    civil.Date `bigquery:"date"`     // REQUIRED

	Year      int64  `bigquery:"year"`
	Quarter   int64  `bigquery:"quarter"`
	Month     int64  `bigquery:"month"`
	MonthName string `bigquery:"month_name"`
	Day       int64  `bigquery:"day"`
	DayName   string `bigquery:"day_name"`
	IsWeekend bool   `bigquery:"is_weekend"`
}

// DimCustomerRow represents a customer dimension record carrying the RFM
// attributes current as of the load that produced it. History is kept
// SCD-2 style: each load inserts new current rows rather than updating in
// place.
type DimCustomerRow struct {
	CustomerID string `bigquery:"customer_id"` // REQUIRED

	Country bigquery.NullString `bigquery:"country"` // NULLABLE

	Recency   int64    `bigquery:"recency_days"`
	Frequency int64    `bigquery:"frequency"`
	Monetary  *big.Rat `bigquery:"monetary"` // NUMERIC

	RScore      int64  `bigquery:"r_score"`
	FScore      int64  `bigquery:"f_score"`
	MScore      int64  `bigquery:"m_score"`
	SegmentCode string `bigquery:"segment_code"`
	RFMScore    int64  `bigquery:"rfm_score"`
	Segment     string `bigquery:"segment"`

	ChurnRisk     bigquery.NullFloat64 `bigquery:"churn_risk"` // NULLABLE
	HighChurnRisk bigquery.NullBool    `bigquery:"high_churn_risk"`

	ValidFrom time.Time `bigquery:"valid_from"` // REQUIRED
	IsCurrent bool      `bigquery:"is_current"`
}

// DimProductRow represents one stock code in the dim_product table.
type DimProductRow struct {
	StockCode   string              `bigquery:"stock_code"` // REQUIRED
	Description bigquery.NullString `bigquery:"description"`

	UnitPrice *big.Rat `bigquery:"unit_price"` // NUMERIC, latest observed
}

// CurrencyAmount is one converted line total inside a fact row.
type CurrencyAmount struct {
	Currency string   `bigquery:"currency"`
	Amount   *big.Rat `bigquery:"amount"` // NUMERIC
}

// FactSalesRow represents one invoice line in the fact_sales table.
type FactSalesRow struct {
	LineID    string `bigquery:"line_id"` // REQUIRED
	InvoiceNo string `bigquery:"invoice_no"`

	DateKey    int64  `bigquery:"date_key"`
	CustomerID string `bigquery:"customer_id"`
	StockCode  string `bigquery:"stock_code"`
	Country    string `bigquery:"country"`

	Quantity  int64    `bigquery:"quantity"`
	UnitPrice *big.Rat `bigquery:"unit_price"` // NUMERIC
	TotalBase *big.Rat `bigquery:"total_base"` // NUMERIC, base currency

	ConvertedTotals []CurrencyAmount `bigquery:"converted_totals"` // REPEATED RECORD

	FraudSuspect bool `bigquery:"fraud_suspect"`

	CDCOperation string                 `bigquery:"cdc_operation"`
	CDCTimestamp bigquery.NullTimestamp `bigquery:"cdc_timestamp"` // NULLABLE

	InvoiceTS time.Time `bigquery:"invoice_ts"` // REQUIRED
	LoadedTS  time.Time `bigquery:"loaded_ts"`  // REQUIRED
}
