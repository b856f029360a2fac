package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-etl/internal/domain"
)

// column names recognized in source headers, case-insensitive.
var csvColumns = []string{
	"InvoiceNo", "StockCode", "Description", "Quantity",
	"UnitPrice", "InvoiceDate", "CustomerID", "Country",
}

// CSVLoader reads raw transaction batches from one or more local CSV files
// and merges them with cross-source deduplication. Rows with unparseable
// numeric columns are dropped here; identifier and date normalization belongs
// to the Cleaner.
type CSVLoader struct {
	dirs []string
	log  zerolog.Logger
}

func NewCSVLoader(log zerolog.Logger, dirs ...string) *CSVLoader {
	return &CSVLoader{dirs: dirs, log: log}
}

// Load scans every configured directory for .csv files, parses them, and
// returns the merged, deduplicated raw batch.
func (l *CSVLoader) Load() ([]domain.RawRecord, error) {
	var files []string
	for _, dir := range l.dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no CSV files found under %s", strings.Join(l.dirs, ", "))
	}

	var all []domain.RawRecord
	for _, file := range files {
		records, err := l.loadFile(file)
		if err != nil {
			return nil, err
		}
		l.log.Info().Str("file", file).Int("rows", len(records)).Msg("Loaded source file")
		all = append(all, records...)
	}

	deduped := dedupe(all)
	if dropped := len(all) - len(deduped); dropped > 0 {
		l.log.Info().Int("dropped", dropped).Msg("Deduplication removed duplicate rows across sources")
	}

	l.log.Info().Int("rows", len(deduped)).Msg("Total ingested dataset")
	return deduped, nil
}

func (l *CSVLoader) loadFile(path string) ([]domain.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, skipped, err := ParseRecords(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if skipped > 0 {
		l.log.Warn().Str("file", path).Int("skipped", skipped).Msg("Skipped rows with unparseable numeric columns")
	}
	return records, nil
}

// ParseRecords reads a headered CSV stream into raw records. It returns the
// parsed rows plus the count of rows skipped for unparseable quantity or
// unit price.
func ParseRecords(r io.Reader) ([]domain.RawRecord, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("reading header: %w", err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, 0, err
	}

	var records []domain.RawRecord
	skipped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("reading row: %w", err)
		}

		rec, ok := parseRow(row, idx)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}

	return records, skipped, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range csvColumns {
		if _, ok := idx[strings.ToLower(col)]; !ok {
			return nil, fmt.Errorf("source file missing column %q", col)
		}
	}
	return idx, nil
}

func parseRow(row []string, idx map[string]int) (domain.RawRecord, bool) {
	field := func(col string) string {
		i := idx[strings.ToLower(col)]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	qty, err := strconv.ParseInt(strings.TrimSpace(field("Quantity")), 10, 64)
	if err != nil {
		return domain.RawRecord{}, false
	}

	price, err := domain.NewDecimal(strings.TrimSpace(field("UnitPrice")))
	if err != nil {
		return domain.RawRecord{}, false
	}

	return domain.RawRecord{
		InvoiceNo:   field("InvoiceNo"),
		StockCode:   field("StockCode"),
		Description: field("Description"),
		Quantity:    qty,
		UnitPrice:   price,
		InvoiceDate: field("InvoiceDate"),
		CustomerID:  field("CustomerID"),
		Country:     field("Country"),
	}, true
}

func dedupe(records []domain.RawRecord) []domain.RawRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]domain.RawRecord, 0, len(records))
	for _, r := range records {
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
