package pipeline

import (
	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-etl/internal/domain"
	etlerrors "github.com/dvloznov/retail-etl/internal/errors"
)

// CurrencyEnricher derives per-currency totals from the run's rate table. It
// is a pure function of (batch, rates): enriching an already-enriched batch
// with the same table reproduces identical columns.
type CurrencyEnricher struct {
	base string
	log  zerolog.Logger
}

func NewCurrencyEnricher(baseCurrency string, log zerolog.Logger) *CurrencyEnricher {
	return &CurrencyEnricher{base: baseCurrency, log: log}
}

// Enrich sets TotalBase = quantity × unit price exactly on every record, plus
// one converted total per non-base currency in the table.
func (e *CurrencyEnricher) Enrich(batch *domain.Batch, rates domain.RateTable) error {
	if len(rates) == 0 {
		return etlerrors.Config("rate table is empty")
	}
	if _, ok := rates[e.base]; !ok {
		return etlerrors.Config("rate table missing base currency %s", e.base)
	}
	for currency, rate := range rates {
		if rate <= 0 {
			return etlerrors.Config("rate for %s must be positive, got %v", currency, rate)
		}
	}

	currencies := make([]string, 0, len(rates))
	for currency := range rates {
		currencies = append(currencies, currency)
	}

	for _, r := range batch.Records {
		r.TotalBase = r.UnitPrice.MulInt64(r.Quantity)
		totals := make(map[string]domain.Decimal, len(rates)-1)
		for currency, rate := range rates {
			if currency == e.base {
				continue
			}
			totals[currency] = r.TotalBase.Mul(domain.NewDecimalFromFloat(rate))
		}
		r.TotalByCurrency = totals
	}

	e.log.Info().
		Str("base", e.base).
		Strs("currencies", currencies).
		Int("records", batch.Len()).
		Msg("Currency transformation applied")

	return nil
}
