package warehouse

import (
	"sort"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/dvloznov/retail-etl/internal/analytics"
	"github.com/dvloznov/retail-etl/internal/domain"
)

// DateKey is the YYYYMMDD integer form of a timestamp's calendar day.
func DateKey(t time.Time) int64 {
	return int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
}

// BuildDimDates returns one row per distinct calendar day in the batch,
// ascending by key.
func BuildDimDates(batch *domain.Batch) []*DimDateRow {
	seen := make(map[int64]time.Time)
	for _, r := range batch.Records {
		seen[DateKey(r.InvoiceDate)] = r.InvoiceDate
	}

	keys := make([]int64, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	rows := make([]*DimDateRow, 0, len(keys))
	for _, k := range keys {
		t := seen[k]
		weekday := t.Weekday()
		rows = append(rows, &DimDateRow{
			DateKey:   k,
			Date:      civil.DateOf(t),
			Year:      int64(t.Year()),
			Quarter:   int64(t.Month()-1)/3 + 1,
			Month:     int64(t.Month()),
			MonthName: t.Month().String(),
			Day:       int64(t.Day()),
			DayName:   weekday.String(),
			IsWeekend: weekday == time.Saturday || weekday == time.Sunday,
		})
	}
	return rows
}

// BuildDimCustomers joins the RFM profiles with per-customer country from the
// batch and the optional churn scores. Rows are marked current as of validFrom.
func BuildDimCustomers(batch *domain.Batch, profiles []*domain.RFMProfile, churn []analytics.ChurnScore, validFrom time.Time) []*DimCustomerRow {
	countries := make(map[string]string)
	for _, r := range batch.Records {
		if _, ok := countries[r.CustomerID]; !ok {
			countries[r.CustomerID] = r.Country
		}
	}

	churnByID := make(map[string]analytics.ChurnScore, len(churn))
	for _, c := range churn {
		churnByID[c.CustomerID] = c
	}

	rows := make([]*DimCustomerRow, 0, len(profiles))
	for _, p := range profiles {
		row := &DimCustomerRow{
			CustomerID:  p.CustomerID,
			Recency:     int64(p.Recency),
			Frequency:   int64(p.Frequency),
			Monetary:    p.Monetary.Rat(),
			RScore:      int64(p.RScore),
			FScore:      int64(p.FScore),
			MScore:      int64(p.MScore),
			SegmentCode: p.SegmentCode,
			RFMScore:    int64(p.Score),
			Segment:     p.Segment,
			ValidFrom:   validFrom,
			IsCurrent:   true,
		}
		if country, ok := countries[p.CustomerID]; ok {
			row.Country = bigquery.NullString{StringVal: country, Valid: true}
		}
		if c, ok := churnByID[p.CustomerID]; ok {
			row.ChurnRisk = bigquery.NullFloat64{Float64: c.Score, Valid: true}
			row.HighChurnRisk = bigquery.NullBool{Bool: c.HighRisk, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}

// BuildDimProducts returns one row per distinct stock code with the first
// non-empty description and the most recently observed unit price.
func BuildDimProducts(batch *domain.Batch) []*DimProductRow {
	type product struct {
		description string
		price       domain.Decimal
		observedAt  time.Time
	}

	products := make(map[string]*product)
	for _, r := range batch.Records {
		p, ok := products[r.StockCode]
		if !ok {
			p = &product{description: r.Description, price: r.UnitPrice, observedAt: r.InvoiceDate}
			products[r.StockCode] = p
			continue
		}
		if p.description == "" {
			p.description = r.Description
		}
		if r.InvoiceDate.After(p.observedAt) {
			p.price = r.UnitPrice
			p.observedAt = r.InvoiceDate
		}
	}

	codes := make([]string, 0, len(products))
	for code := range products {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	rows := make([]*DimProductRow, 0, len(codes))
	for _, code := range codes {
		p := products[code]
		row := &DimProductRow{StockCode: code, UnitPrice: p.price.Rat()}
		if p.description != "" {
			row.Description = bigquery.NullString{StringVal: p.description, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}

// BuildFactSales converts every record in the batch into a fact row. Line IDs
// are freshly minted; the fact table is append-only.
func BuildFactSales(batch *domain.Batch, loadedAt time.Time) []*FactSalesRow {
	rows := make([]*FactSalesRow, 0, batch.Len())
	for _, r := range batch.Records {
		row := &FactSalesRow{
			LineID:       uuid.NewString(),
			InvoiceNo:    r.InvoiceNo,
			DateKey:      DateKey(r.InvoiceDate),
			CustomerID:   r.CustomerID,
			StockCode:    r.StockCode,
			Country:      r.Country,
			Quantity:     r.Quantity,
			UnitPrice:    r.UnitPrice.Rat(),
			TotalBase:    r.TotalBase.Rat(),
			FraudSuspect: r.FraudSuspect,
			CDCOperation: r.CDCOperation,
			InvoiceTS:    r.InvoiceDate,
			LoadedTS:     loadedAt,
		}
		if !r.CDCTimestamp.IsZero() {
			row.CDCTimestamp = bigquery.NullTimestamp{Timestamp: r.CDCTimestamp, Valid: true}
		}

		currencies := make([]string, 0, len(r.TotalByCurrency))
		for cur := range r.TotalByCurrency {
			currencies = append(currencies, cur)
		}
		sort.Strings(currencies)
		for _, cur := range currencies {
			total := r.TotalByCurrency[cur]
			row.ConvertedTotals = append(row.ConvertedTotals, CurrencyAmount{
				Currency: cur,
				Amount:   total.Rat(),
			})
		}

		rows = append(rows, row)
	}
	return rows
}
