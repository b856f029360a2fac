package warehouse

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/retail-etl/internal/analytics"
	"github.com/dvloznov/retail-etl/internal/config"
	"github.com/dvloznov/retail-etl/internal/domain"
)

const (
	dimDateTable     = "dim_date"
	dimCustomerTable = "dim_customer"
	dimProductTable  = "dim_product"
	factSalesTable   = "fact_sales"
)

// Warehouse loads processed batches into the BigQuery star schema. It holds a
// shared client to avoid creating a new connection for each operation, and it
// satisfies the pipeline's Loader interface.
//
// All tables are append-only: streaming inserts cannot update in place, so
// dimension dedup and SCD-2 expiry of superseded customer rows happen in
// scheduled MERGE statements on the warehouse side.
type Warehouse struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	predictor *analytics.Predictor
	now       func() time.Time
	log       zerolog.Logger
}

// New creates a Warehouse with its own BigQuery client. Callers must Close it.
func New(ctx context.Context, cfg config.GCPConfig, log zerolog.Logger) (*Warehouse, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("warehouse: creating bigquery client: %w", err)
	}
	return NewWithClient(client, cfg, log), nil
}

// NewWithClient creates a Warehouse around an existing client, which the
// caller remains responsible for closing.
func NewWithClient(client *bigquery.Client, cfg config.GCPConfig, log zerolog.Logger) *Warehouse {
	return &Warehouse{
		client:    client,
		projectID: cfg.ProjectID,
		datasetID: cfg.DatasetID,
		predictor: analytics.NewPredictor(log),
		now:       time.Now,
		log:       log,
	}
}

func (w *Warehouse) Close() error {
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}

// Load writes one processed batch into the star schema. Initial loads populate
// all four tables; incremental loads append facts plus whatever dimension rows
// the batch introduces. Profiles may be nil for small increments, in which
// case dim_customer is left untouched.
func (w *Warehouse) Load(ctx context.Context, batch *domain.Batch, profiles []*domain.RFMProfile, initial bool) error {
	loadedAt := w.now()

	if err := w.insert(ctx, dimDateTable, BuildDimDates(batch)); err != nil {
		return err
	}
	if err := w.insert(ctx, dimProductTable, BuildDimProducts(batch)); err != nil {
		return err
	}

	if len(profiles) > 0 {
		churn := w.predictor.ChurnRisk(profiles)
		if err := w.insert(ctx, dimCustomerTable, BuildDimCustomers(batch, profiles, churn, loadedAt)); err != nil {
			return err
		}
	}

	if err := w.insert(ctx, factSalesTable, BuildFactSales(batch, loadedAt)); err != nil {
		return err
	}

	w.log.Info().
		Str("dataset", w.datasetID).
		Int("facts", batch.Len()).
		Int("customers", len(profiles)).
		Bool("initial", initial).
		Msg("Loaded batch into warehouse")
	return nil
}

func (w *Warehouse) insert(ctx context.Context, table string, rows any) error {
	inserter := w.client.DatasetInProject(w.projectID, w.datasetID).Table(table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("warehouse: inserting into %s: %w", table, err)
	}
	return nil
}

// CountryRevenue is one row of the revenue-by-country rollup.
type CountryRevenue struct {
	Country string   `bigquery:"country"`
	Lines   int64    `bigquery:"lines"`
	Revenue *big.Rat `bigquery:"revenue"`
}

// RevenueByCountry aggregates base-currency revenue over the whole fact
// table, largest markets first. Suspected fraud lines are excluded.
func (w *Warehouse) RevenueByCountry(ctx context.Context) ([]CountryRevenue, error) {
	q := w.client.Query(fmt.Sprintf(`
		SELECT
			country,
			COUNT(*) AS lines,
			SUM(total_base) AS revenue
		FROM %s.%s
		WHERE NOT fraud_suspect
		GROUP BY country
		ORDER BY revenue DESC
	`, w.datasetID, factSalesTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("warehouse: revenue by country: %w", err)
	}

	var rows []CountryRevenue
	for {
		var r CountryRevenue
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("warehouse: revenue by country: iter next: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}
