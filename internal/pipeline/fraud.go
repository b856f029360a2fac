package pipeline

import (
	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-etl/internal/domain"
	"github.com/dvloznov/retail-etl/internal/stats"
)

// FraudScorer flags statistically anomalous transactions with three
// independent heuristics: batch-wide value outliers, per-product price
// anomalies, and per-customer daily invoice velocity. A record is a suspect
// iff any rule fires.
type FraudScorer struct {
	log zerolog.Logger
}

func NewFraudScorer(log zerolog.Logger) *FraudScorer {
	return &FraudScorer{log: log}
}

// Score sets the fraud-suspect flag on every record in place. An empty batch
// is valid and produces zero flags.
func (s *FraudScorer) Score(batch *domain.Batch) {
	if batch.Len() == 0 {
		s.log.Info().Msg("Fraud analysis skipped: empty batch")
		return
	}

	totals := make([]float64, batch.Len())
	for i, r := range batch.Records {
		totals[i] = r.TotalBase.Float64()
	}
	q3 := stats.Quartile(totals, 0.75)
	valueLimit := q3 + ValueOutlierIQRFactor*stats.IQR(totals)

	meanPrices := meanPriceByStockCode(batch)
	dailyInvoices := invoicesPerCustomerDay(batch)

	var valueFlags, priceFlags, velocityFlags, suspects int
	for i, r := range batch.Records {
		valueAnomaly := totals[i] > valueLimit
		priceAnomaly := r.UnitPrice.Float64() > meanPrices[r.StockCode]*PriceAnomalyFactor
		velocityAnomaly := dailyInvoices[customerDayKey(r)] > VelocityInvoiceLimit

		if valueAnomaly {
			valueFlags++
		}
		if priceAnomaly {
			priceFlags++
		}
		if velocityAnomaly {
			velocityFlags++
		}

		r.FraudSuspect = valueAnomaly || priceAnomaly || velocityAnomaly
		if r.FraudSuspect {
			suspects++
		}
	}

	s.log.Info().
		Int("suspects", suspects).
		Int("value_outliers", valueFlags).
		Int("price_anomalies", priceFlags).
		Int("high_velocity", velocityFlags).
		Float64("value_limit", valueLimit).
		Msg("Fraud analysis complete")
}

func meanPriceByStockCode(batch *domain.Batch) map[string]float64 {
	means := make(map[string]float64)
	for code, records := range batch.GroupByStockCode() {
		prices := make([]float64, len(records))
		for i, r := range records {
			prices[i] = r.UnitPrice.Float64()
		}
		means[code] = stats.Mean(prices)
	}
	return means
}

// invoicesPerCustomerDay counts distinct invoice IDs per customer per
// calendar day.
func invoicesPerCustomerDay(batch *domain.Batch) map[string]int {
	sets := make(map[string]map[string]struct{})
	for _, r := range batch.Records {
		key := customerDayKey(r)
		if sets[key] == nil {
			sets[key] = make(map[string]struct{})
		}
		sets[key][r.InvoiceNo] = struct{}{}
	}

	counts := make(map[string]int, len(sets))
	for key, invoices := range sets {
		counts[key] = len(invoices)
	}
	return counts
}

func customerDayKey(r *domain.Record) string {
	return r.CustomerID + "\x1f" + r.InvoiceDate.Format("2006-01-02")
}
