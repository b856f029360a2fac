package pipeline

// Scoring thresholds. All three fraud thresholds are batch-relative: they are
// recomputed on every run and never persisted, so flags are only meaningful
// within the batch that produced them. Small batches yield unstable
// thresholds; that is a known limitation carried over deliberately.
const (
	// ValueOutlierIQRFactor scales the IQR above Q3 for the transaction
	// value outlier rule.
	ValueOutlierIQRFactor = 3.0

	// PriceAnomalyFactor flags unit prices above this multiple of the
	// per-product mean.
	PriceAnomalyFactor = 2.0

	// VelocityInvoiceLimit is the maximum distinct invoices per customer per
	// calendar day before the velocity rule fires.
	VelocityInvoiceLimit = 10

	// MinRFMCustomers is the smallest batch (by distinct customers) for
	// which quartile binning is defined.
	MinRFMCustomers = 4

	// rfmBuckets is the number of quantile buckets per RFM metric.
	rfmBuckets = 4
)
