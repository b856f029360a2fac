package pipeline

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-etl/internal/domain"
	etlerrors "github.com/dvloznov/retail-etl/internal/errors"
)

// invoiceDateLayouts are the timestamp layouts observed in the source feeds.
// Tried in order; the first match wins.
var invoiceDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04",
	"1/2/2006",
}

// Cleaner filters and normalizes raw rows into a valid batch. Malformed rows
// are dropped, never fatal: the only observable failure mode is a smaller
// batch, with per-filter drop counts logged.
type Cleaner struct {
	log zerolog.Logger
}

func NewCleaner(log zerolog.Logger) *Cleaner {
	return &Cleaner{log: log}
}

// Clean applies, in order: missing-identifier drops, non-positive quantity and
// price drops, exact-duplicate removal, and type/string normalization. Every
// record in the returned batch has a positive quantity, a positive unit price,
// a canonical customer ID, and a parsed invoice timestamp.
func (c *Cleaner) Clean(raw []domain.RawRecord) *domain.Batch {
	initial := len(raw)

	kept := make([]domain.RawRecord, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.InvoiceNo) == "" || strings.TrimSpace(r.CustomerID) == "" {
			continue
		}
		kept = append(kept, r)
	}
	afterIDs := len(kept)

	filtered := kept[:0]
	for _, r := range kept {
		if r.Quantity <= 0 || r.UnitPrice.Sign() <= 0 {
			continue
		}
		filtered = append(filtered, r)
	}
	afterValues := len(filtered)

	deduped := dropDuplicates(filtered)
	afterDedup := len(deduped)

	records := make([]*domain.Record, 0, len(deduped))
	formatDrops := 0
	for _, r := range deduped {
		rec, err := normalize(r)
		if err != nil {
			formatDrops++
			c.log.Debug().Err(err).Str("invoice_no", r.InvoiceNo).Msg("dropping malformed row")
			continue
		}
		records = append(records, rec)
	}

	c.log.Info().
		Int("initial", initial).
		Int("dropped_missing_ids", initial-afterIDs).
		Int("dropped_nonpositive", afterIDs-afterValues).
		Int("dropped_duplicates", afterValues-afterDedup).
		Int("dropped_unparseable", formatDrops).
		Int("cleaned", len(records)).
		Msg("Cleaning complete")

	return domain.NewBatch(records)
}

// dropDuplicates removes rows whose columns are all equal, keeping the first
// occurrence.
func dropDuplicates(rows []domain.RawRecord) []domain.RawRecord {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		key := strings.Join([]string{
			r.InvoiceNo, r.StockCode, r.Description,
			strconv.FormatInt(r.Quantity, 10), r.UnitPrice.String(),
			r.InvoiceDate, r.CustomerID, r.Country,
		}, "\x1f")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// normalize converts one surviving raw row into a typed record: canonical
// customer ID, parsed timestamp, trimmed text, upper-cased join keys.
func normalize(r domain.RawRecord) (*domain.Record, error) {
	customerID, err := canonicalCustomerID(r.CustomerID)
	if err != nil {
		return nil, err
	}

	invoiceDate, err := parseInvoiceDate(r.InvoiceDate)
	if err != nil {
		return nil, err
	}

	return &domain.Record{
		InvoiceNo:   strings.ToUpper(strings.TrimSpace(r.InvoiceNo)),
		StockCode:   strings.ToUpper(strings.TrimSpace(r.StockCode)),
		Description: strings.TrimSpace(r.Description),
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
		InvoiceDate: invoiceDate,
		CustomerID:  customerID,
		Country:     strings.ToUpper(strings.TrimSpace(r.Country)),
	}, nil
}

// canonicalCustomerID coerces a customer identifier to its canonical integer
// string form. Source feeds carry IDs as floats ("17850.0"); the fractional
// part must be zero, anything else is a format error.
func canonicalCustomerID(id string) (string, error) {
	s := strings.TrimSpace(id)
	if s == "" {
		return "", etlerrors.Format("empty customer ID")
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(i, 10), nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", etlerrors.Format("customer ID %q is not numeric", id)
	}
	i := int64(f)
	if float64(i) != f {
		return "", etlerrors.Format("customer ID %q is not integer-like", id)
	}
	return strconv.FormatInt(i, 10), nil
}

func parseInvoiceDate(s string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	for _, layout := range invoiceDateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, etlerrors.Format("unparseable invoice date %q", s)
}
