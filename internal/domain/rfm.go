package domain

// Customer segment labels, assigned in fixed priority order by the RFM
// segmenter.
const (
	SegmentBestCustomers      = "Best Customers"
	SegmentLoyalCustomers     = "Loyal Customers"
	SegmentBigSpenders        = "Big Spenders"
	SegmentPotentialLoyalists = "Potential Loyalists"
	SegmentLostCustomers      = "Lost Customers"
	SegmentAtRisk             = "At Risk"
	SegmentRecentCustomers    = "Recent Customers"
)

// RFMProfile is the per-customer behavioral profile recomputed from scratch
// on every pipeline run. Exactly one profile exists per distinct customer ID
// in the batch.
type RFMProfile struct {
	CustomerID string

	// Recency is whole days between the batch snapshot date and the
	// customer's latest invoice. Frequency counts distinct invoices.
	// Monetary sums the base-currency totals of all the customer's records.
	Recency   int
	Frequency int
	Monetary  Decimal

	// Quartile scores, each in 1..4. Recency is inverted: 4 = most recent.
	RScore int
	FScore int
	MScore int

	// SegmentCode is the three-digit concatenation "RFM", e.g. "434".
	SegmentCode string

	// Score is RScore+FScore+MScore, in 3..12.
	Score int

	Segment string
}
