package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-etl/internal/domain"
	etlerrors "github.com/dvloznov/retail-etl/internal/errors"
)

// ChurnRiskThreshold marks the score at or above which a customer counts as
// high risk.
const ChurnRiskThreshold = 3.5

// ChurnScore rates a customer's churn risk in [0.2, 4.4] from their recency
// and frequency scores, weighting staleness over infrequency. Rounded to two
// decimals.
type ChurnScore struct {
	CustomerID string
	Score      float64
	HighRisk   bool
}

// RevenuePoint is one day of aggregated base-currency revenue.
type RevenuePoint struct {
	Date    time.Time
	Revenue float64
}

// Predictor derives forward-looking signals from a processed batch and its
// RFM profiles. All of it is closed-form; there is no model state to persist.
type Predictor struct {
	log zerolog.Logger
}

func NewPredictor(log zerolog.Logger) *Predictor {
	return &Predictor{log: log}
}

// ChurnRisk scores every profile. Low recency and frequency scores both raise
// the risk; recency dominates because a lapsed big spender is still lapsed.
func (p *Predictor) ChurnRisk(profiles []*domain.RFMProfile) []ChurnScore {
	scores := make([]ChurnScore, 0, len(profiles))
	highRisk := 0

	for _, prof := range profiles {
		raw := float64(5-prof.RScore)*0.6 + float64(5-prof.FScore)*0.4
		score := math.Round(raw*100) / 100
		high := score >= ChurnRiskThreshold
		if high {
			highRisk++
		}
		scores = append(scores, ChurnScore{
			CustomerID: prof.CustomerID,
			Score:      score,
			HighRisk:   high,
		})
	}

	p.log.Info().Int("customers", len(scores)).Int("high_risk", highRisk).Msg("Computed churn risk scores")
	return scores
}

// ForecastRevenue fits a least-squares line to the batch's daily revenue and
// projects it `horizon` days past the last observed day. Projections are
// clipped at zero; a declining fit never forecasts negative revenue. At least
// two observed days are required.
func (p *Predictor) ForecastRevenue(batch *domain.Batch, horizon int) ([]RevenuePoint, error) {
	daily := DailyRevenue(batch)
	if len(daily) < 2 {
		return nil, etlerrors.InsufficientData("revenue forecast needs at least 2 days of history, got %d", len(daily))
	}

	// x is days since the first observed day, so the intercept is anchored at
	// the start of the series.
	first := daily[0].Date
	n := float64(len(daily))
	var sumX, sumY, sumXY, sumXX float64
	for _, pt := range daily {
		x := pt.Date.Sub(first).Hours() / 24
		sumX += x
		sumY += pt.Revenue
		sumXY += x * pt.Revenue
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return nil, etlerrors.InsufficientData("revenue history has no day-to-day spread")
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	last := daily[len(daily)-1].Date
	lastX := last.Sub(first).Hours() / 24

	forecast := make([]RevenuePoint, 0, horizon)
	for i := 1; i <= horizon; i++ {
		predicted := intercept + slope*(lastX+float64(i))
		forecast = append(forecast, RevenuePoint{
			Date:    last.AddDate(0, 0, i),
			Revenue: math.Max(0, predicted),
		})
	}

	p.log.Info().
		Int("observed_days", len(daily)).
		Int("horizon_days", horizon).
		Float64("daily_slope", slope).
		Msg("Forecasted revenue")
	return forecast, nil
}

// DailyRevenue aggregates base-currency revenue per calendar day, ascending.
func DailyRevenue(batch *domain.Batch) []RevenuePoint {
	if batch.Len() == 0 {
		return nil
	}

	byDay := make(map[time.Time]float64)
	for _, r := range batch.Records {
		day := time.Date(r.InvoiceDate.Year(), r.InvoiceDate.Month(), r.InvoiceDate.Day(), 0, 0, 0, 0, time.UTC)
		byDay[day] += r.TotalBase.Float64()
	}

	points := make([]RevenuePoint, 0, len(byDay))
	for day, revenue := range byDay {
		points = append(points, RevenuePoint{Date: day, Revenue: revenue})
	}
	sort.Slice(points, func(a, b int) bool { return points[a].Date.Before(points[b].Date) })
	return points
}
