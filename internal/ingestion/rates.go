package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-etl/internal/config"
	"github.com/dvloznov/retail-etl/internal/domain"
)

const (
	ratesAPIBaseURL = "https://v6.exchangerate-api.com/v6"
	ratesCacheTTL   = 24 * time.Hour
)

// mockRates mirrors the live API closely enough for offline development and
// deterministic tests.
var mockRates = domain.RateTable{
	"GBP": 1.0,
	"USD": 1.27,
	"EUR": 1.16,
	"MAD": 12.85,
}

// FXFetcher resolves the conversion rate table for the configured base
// currency. Lookup order: fresh on-disk cache, then the exchangerate-api
// endpoint, then built-in mock rates. Live responses are cached for a day so
// repeated pipeline runs do not burn API quota.
type FXFetcher struct {
	cfg     config.FXConfig
	client  *http.Client
	baseURL string
	now     func() time.Time
	log     zerolog.Logger
}

func NewFXFetcher(cfg config.FXConfig, log zerolog.Logger) *FXFetcher {
	return &FXFetcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: ratesAPIBaseURL,
		now:     time.Now,
		log:     log,
	}
}

type cachedRates struct {
	FetchedAt time.Time        `json:"fetched_at"`
	Base      string           `json:"base"`
	Rates     domain.RateTable `json:"rates"`
}

type ratesResponse struct {
	Result          string             `json:"result"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// GetRates returns the rate table keyed by currency code, base included at 1.0.
func (f *FXFetcher) GetRates(ctx context.Context) (domain.RateTable, error) {
	if rates, ok := f.fromCache(); ok {
		f.log.Info().Str("base", f.cfg.BaseCurrency).Msg("Using cached exchange rates")
		return rates, nil
	}

	if f.cfg.APIKey == "" {
		f.log.Warn().Msg("No exchange rate API key configured, using mock rates")
		return f.selectRates(mockRates), nil
	}

	rates, err := f.fetchLive(ctx)
	if err != nil {
		f.log.Warn().Err(err).Msg("Exchange rate API unavailable, falling back to mock rates")
		return f.selectRates(mockRates), nil
	}

	f.writeCache(rates)
	f.log.Info().Str("base", f.cfg.BaseCurrency).Int("currencies", len(rates)).Msg("Fetched live exchange rates")
	return rates, nil
}

func (f *FXFetcher) fetchLive(ctx context.Context) (domain.RateTable, error) {
	url := fmt.Sprintf("%s/%s/latest/%s", f.baseURL, f.cfg.APIKey, f.cfg.BaseCurrency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling exchange rate API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange rate API returned status %d", resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if body.Result != "success" {
		return nil, fmt.Errorf("exchange rate API result %q", body.Result)
	}

	return f.selectRates(body.ConversionRates), nil
}

// selectRates narrows a full conversion table down to the base plus the
// configured targets, so downstream enrichment never sees stray currencies.
func (f *FXFetcher) selectRates(all map[string]float64) domain.RateTable {
	rates := domain.RateTable{f.cfg.BaseCurrency: 1.0}
	for _, cur := range f.cfg.TargetCurrencies {
		if rate, ok := all[cur]; ok {
			rates[cur] = rate
		} else {
			f.log.Warn().Str("currency", cur).Msg("Target currency missing from rate source")
		}
	}
	return rates
}

func (f *FXFetcher) fromCache() (domain.RateTable, bool) {
	if f.cfg.CachePath == "" {
		return nil, false
	}

	data, err := os.ReadFile(f.cfg.CachePath)
	if err != nil {
		return nil, false
	}

	var cached cachedRates
	if err := json.Unmarshal(data, &cached); err != nil {
		f.log.Warn().Err(err).Str("path", f.cfg.CachePath).Msg("Ignoring unreadable rate cache")
		return nil, false
	}

	if cached.Base != f.cfg.BaseCurrency {
		return nil, false
	}
	if f.now().Sub(cached.FetchedAt) > ratesCacheTTL {
		return nil, false
	}

	return cached.Rates, true
}

func (f *FXFetcher) writeCache(rates domain.RateTable) {
	if f.cfg.CachePath == "" {
		return
	}

	data, err := json.Marshal(cachedRates{
		FetchedAt: f.now(),
		Base:      f.cfg.BaseCurrency,
		Rates:     rates,
	})
	if err != nil {
		f.log.Warn().Err(err).Msg("Failed to encode rate cache")
		return
	}

	if err := os.MkdirAll(filepath.Dir(f.cfg.CachePath), 0o755); err != nil {
		f.log.Warn().Err(err).Msg("Failed to create rate cache directory")
		return
	}
	if err := os.WriteFile(f.cfg.CachePath, data, 0o644); err != nil {
		f.log.Warn().Err(err).Str("path", f.cfg.CachePath).Msg("Failed to write rate cache")
	}
}
