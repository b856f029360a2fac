package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-etl/internal/domain"
)

// Diagnostic is one quality finding: which check fired, on which column, and
// how many rows violate it. Hard diagnostics fail the gate; soft ones are
// review hints only.
type Diagnostic struct {
	Check      string
	Column     string
	Violations int
	Hard       bool
}

// GateReport is the quality gate's verdict on a batch: an overall pass/fail
// plus the diagnostics behind it.
type GateReport struct {
	Passed      bool
	Diagnostics []Diagnostic
}

// Failures returns only the hard diagnostics.
func (r GateReport) Failures() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Hard {
			out = append(out, d)
		}
	}
	return out
}

// QualityGate validates invariants on the fully enriched, fraud-annotated
// batch. It never mutates the batch; its report is the only control signal
// the core emits to decide whether loading may proceed.
type QualityGate struct {
	now func() time.Time
	log zerolog.Logger
}

func NewQualityGate(log zerolog.Logger) *QualityGate {
	return &QualityGate{now: time.Now, log: log}
}

// NewQualityGateAt builds a gate whose future-date check evaluates against
// the supplied clock.
func NewQualityGateAt(now func() time.Time, log zerolog.Logger) *QualityGate {
	return &QualityGate{now: now, log: log}
}

// Run executes the check suite. Hard failures: missing identifiers or totals,
// non-positive quantities or base totals, future invoice timestamps, and a
// derived-currency column that is all-zero while base totals are not (a
// broken currency pass). Soft warning: duplicate (invoice, product) pairs.
func (g *QualityGate) Run(batch *domain.Batch) GateReport {
	report := GateReport{Passed: true}

	addHard := func(check, column string, violations int) {
		if violations == 0 {
			return
		}
		report.Passed = false
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			Check: check, Column: column, Violations: violations, Hard: true,
		})
		g.log.Error().
			Str("check", check).
			Str("column", column).
			Int("violations", violations).
			Msg("DQ failure")
	}

	var missingInvoice, missingCustomer, missingStock int
	var badQuantity, badTotal, futureDates int
	now := g.now()
	for _, r := range batch.Records {
		if r.InvoiceNo == "" {
			missingInvoice++
		}
		if r.CustomerID == "" {
			missingCustomer++
		}
		if r.StockCode == "" {
			missingStock++
		}
		if r.Quantity <= 0 {
			badQuantity++
		}
		if r.TotalBase.Sign() <= 0 {
			badTotal++
		}
		if r.InvoiceDate.After(now) {
			futureDates++
		}
	}

	addHard("null_check", "invoice_no", missingInvoice)
	addHard("null_check", "customer_id", missingCustomer)
	addHard("null_check", "stock_code", missingStock)
	addHard("quantity_check", "quantity", badQuantity)
	addHard("revenue_check", "total_base", badTotal)
	addHard("date_sanity_check", "invoice_date", futureDates)

	for currency, violations := range deadCurrencyColumns(batch) {
		addHard("currency_conversion_check", "total_"+currency, violations)
	}

	if dupes := duplicateInvoiceLines(batch); dupes > 0 {
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			Check:      "invoice_line_uniqueness",
			Column:     "invoice_no,stock_code",
			Violations: dupes,
		})
		g.log.Warn().
			Int("duplicates", dupes).
			Msg("DQ warning: duplicate product entries within invoices; might be normal but warrants review")
	}

	if report.Passed {
		g.log.Info().Msg("All critical data quality checks passed")
	}

	return report
}

// deadCurrencyColumns finds derived-currency columns that are all-zero while
// base totals are non-zero.
func deadCurrencyColumns(batch *domain.Batch) map[string]int {
	anyBase := false
	for _, r := range batch.Records {
		if !r.TotalBase.IsZero() {
			anyBase = true
			break
		}
	}
	if !anyBase {
		return nil
	}

	nonZero := make(map[string]bool)
	present := make(map[string]bool)
	for _, r := range batch.Records {
		for currency, total := range r.TotalByCurrency {
			present[currency] = true
			if !total.IsZero() {
				nonZero[currency] = true
			}
		}
	}

	dead := make(map[string]int)
	for currency := range present {
		if !nonZero[currency] {
			dead[currency] = batch.Len()
		}
	}
	return dead
}

// duplicateInvoiceLines counts records beyond the first for each
// (invoice, product) pair. Normal retail allows one line per product per
// invoice, so these are flagged for review.
func duplicateInvoiceLines(batch *domain.Batch) int {
	seen := make(map[string]bool, batch.Len())
	dupes := 0
	for _, r := range batch.Records {
		key := r.InvoiceNo + "\x1f" + r.StockCode
		if seen[key] {
			dupes++
		}
		seen[key] = true
	}
	return dupes
}
