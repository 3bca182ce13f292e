package analytics

import (
	"fmt"
	"time"

	"github.com/satishbabariya/salesreport/query/builder"
	"github.com/satishbabariya/salesreport/query/sqlgen"
)

// DateLayout is the format dates are bound with. It compares correctly with
// TEXT dates in SQLite and converts implicitly to timestamps elsewhere.
const DateLayout = "2006-01-02 15:04:05"

// DateRange is the half-open interval [From, To). A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Validate checks that a closed range is not empty.
func (r DateRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && !r.From.Before(r.To) {
		return fmt.Errorf("date range is empty: %s is not before %s", r.From.Format(DateLayout), r.To.Format(DateLayout))
	}
	return nil
}

// Filters narrow the sales rows a report aggregates.
type Filters struct {
	Period DateRange
	// CategoryID restricts to one product category; 0 means all.
	CategoryID int
	// MinUnits drops groups that sold fewer units; 0 means no bound.
	MinUnits int
}

// Validate checks the filters.
func (f Filters) Validate() error {
	if err := f.Period.Validate(); err != nil {
		return err
	}
	if f.CategoryID < 0 {
		return fmt.Errorf("category id must not be negative, got %d", f.CategoryID)
	}
	if f.MinUnits < 0 {
		return fmt.Errorf("minimum units must not be negative, got %d", f.MinUnits)
	}
	return nil
}

// where adds the row filters to b, which must read sales as s joined to
// products as p.
func (f Filters) where(b *builder.Builder) *builder.Builder {
	if !f.Period.From.IsZero() {
		b = b.Where("s.sales_date", sqlgen.OpGte, f.Period.From.UTC().Format(DateLayout))
	}
	if !f.Period.To.IsZero() {
		b = b.Where("s.sales_date", sqlgen.OpLt, f.Period.To.UTC().Format(DateLayout))
	}
	if f.CategoryID > 0 {
		b = b.Where("p.category_id", sqlgen.OpEq, f.CategoryID)
	}
	return b
}

// having adds the group filters to an aggregating b.
func (f Filters) having(b *builder.Builder) *builder.Builder {
	if f.MinUnits > 0 {
		b = b.Having("SUM(s.quantity)", sqlgen.OpGte, f.MinUnits)
	}
	return b
}

// ProductRankingParams parameterizes ProductRanking.
type ProductRankingParams struct {
	Filters
	// TopN keeps the products ranked TopN or better in each category; 0 keeps all.
	TopN int
}

// EmployeePerformanceParams parameterizes EmployeePerformance.
type EmployeePerformanceParams struct {
	Filters
	// Limit caps the number of employees returned; 0 returns all.
	Limit int
}

// SegmentationParams parameterizes CustomerSegmentation.
type SegmentationParams struct {
	Filters
	// Segments is the number of buckets; 0 means DefaultSegments.
	Segments int
}

// DefaultSegments splits customers into quartiles.
const DefaultSegments = 4

// TrendGrouping is the series key of a trend.
type TrendGrouping string

// Trend groupings.
const (
	ByCategory TrendGrouping = "category"
	ByProduct  TrendGrouping = "product"
	ByEmployee TrendGrouping = "employee"
	ByCustomer TrendGrouping = "customer"
)

func (g TrendGrouping) column() (string, error) {
	switch g {
	case ByCategory, "":
		return "p.category_id", nil
	case ByProduct:
		return "p.product_id", nil
	case ByEmployee:
		return "s.sales_person_id", nil
	case ByCustomer:
		return "s.customer_id", nil
	default:
		return "", fmt.Errorf("unsupported trend grouping: %s", g)
	}
}

// TrendParams parameterizes SalesTrend.
type TrendParams struct {
	Filters
	// Grain is the period size; empty means month.
	Grain sqlgen.Grain
	// GroupBy selects the series key; empty means category.
	GroupBy TrendGrouping
}

// TopProductsParams parameterizes TopSellingProducts.
type TopProductsParams struct {
	Filters
	// Limit caps the number of products; 0 means DefaultTopProducts.
	Limit int
}

// DefaultTopProducts is the default length of the top-selling list.
const DefaultTopProducts = 10
