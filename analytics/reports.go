package analytics

import (
	"fmt"
	"sort"

	"github.com/satishbabariya/salesreport/query"
	"github.com/satishbabariya/salesreport/query/sqlgen"
)

// Options is the union of the report parameters, as collected from flags or
// configuration. Each report reads the fields it understands.
type Options struct {
	Filters
	TopN     int
	Limit    int
	Segments int
	Grain    sqlgen.Grain
	GroupBy  TrendGrouping
}

// Report is a named query template.
type Report struct {
	Name        string
	Description string
	// Columns lists the result columns in display order.
	Columns []string

	build func(Queries, Options) (*query.Query, error)
}

// Build renders the report for the given dialect templates.
func (r *Report) Build(q Queries, opts Options) (*query.Query, error) {
	return r.build(q, opts)
}

// Report names.
const (
	ReportProductRanking       = "product-ranking"
	ReportEmployeePerformance  = "employee-performance"
	ReportCustomerSegmentation = "customer-segmentation"
	ReportSalesTrend           = "sales-trend"
	ReportTopProducts          = "top-products"
)

var registry = map[string]*Report{
	ReportProductRanking: {
		Name:        ReportProductRanking,
		Description: "Products ranked by net sales within each category",
		Columns:     []string{"category_id", "category_name", "sales_rank", "product_id", "product_name", "net_sales"},
		build: func(q Queries, o Options) (*query.Query, error) {
			return q.ProductRanking(ProductRankingParams{Filters: o.Filters, TopN: o.TopN})
		},
	},
	ReportEmployeePerformance: {
		Name:        ReportEmployeePerformance,
		Description: "Employees ranked by net sales, then units sold",
		Columns:     []string{"performance_rank", "employee_id", "first_name", "last_name", "net_sales", "units"},
		build: func(q Queries, o Options) (*query.Query, error) {
			return q.EmployeePerformance(EmployeePerformanceParams{Filters: o.Filters, Limit: o.Limit})
		},
	},
	ReportCustomerSegmentation: {
		Name:        ReportCustomerSegmentation,
		Description: "Customers bucketed by monetary value and purchase frequency",
		Columns:     []string{"customer_id", "first_name", "last_name", "frequency", "monetary", "monetary_segment", "frequency_segment"},
		build: func(q Queries, o Options) (*query.Query, error) {
			return q.CustomerSegmentation(SegmentationParams{Filters: o.Filters, Segments: o.Segments})
		},
	},
	ReportSalesTrend: {
		Name:        ReportSalesTrend,
		Description: "Net sales per period with the change from the previous period",
		Columns:     []string{"group_key", "period", "net_sales", "previous_sales", "delta"},
		build: func(q Queries, o Options) (*query.Query, error) {
			return q.SalesTrend(TrendParams{Filters: o.Filters, Grain: o.Grain, GroupBy: o.GroupBy})
		},
	},
	ReportTopProducts: {
		Name:        ReportTopProducts,
		Description: "Products with the most units sold",
		Columns:     []string{"product_id", "product_name", "category_name", "units_sold"},
		build: func(q Queries, o Options) (*query.Query, error) {
			return q.TopSellingProducts(TopProductsParams{Filters: o.Filters, Limit: o.Limit})
		},
	},
}

// Reports returns every registered report sorted by name.
func Reports() []*Report {
	out := make([]*Report, 0, len(registry))
	for _, r := range registry {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupReport returns the report registered under name.
func LookupReport(name string) (*Report, error) {
	r, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown report %q", name)
	}
	return r, nil
}
