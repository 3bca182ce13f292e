// Package analytics provides the named sales report templates, their typed
// parameters and results, and the service that runs them through the cache.
package analytics

import (
	"fmt"

	"github.com/satishbabariya/salesreport/query"
	"github.com/satishbabariya/salesreport/query/builder"
	"github.com/satishbabariya/salesreport/query/sqlgen"
)

// NetSales is the revenue of one sales row after discount.
const NetSales = "s.quantity * p.price * (1 - s.discount)"

// moneyPlaces is the scale net sales totals are rounded to before they are
// ranked, bucketed or compared.
const moneyPlaces = 2

// Queries builds report queries for one dialect. Every method is a pure
// function of its parameters.
type Queries struct {
	dialect sqlgen.Dialect
}

// NewQueries returns the templates for dialect.
func NewQueries(dialect sqlgen.Dialect) Queries {
	return Queries{dialect: dialect}
}

// Dialect returns the dialect the templates render for.
func (q Queries) Dialect() sqlgen.Dialect {
	return q.dialect
}

// netSalesTotal sums NetSales rounded to cents.
func (q Queries) netSalesTotal() string {
	return q.dialect.Round(sqlgen.Sum(NetSales), moneyPlaces)
}

// salesWithProducts starts a builder over sales joined to products.
func (q Queries) salesWithProducts() *builder.Builder {
	return builder.New(q.dialect).
		FromAs("sales", "s").
		Join("products", "p", builder.On("s.product_id", "p.product_id"))
}

// ProductRanking ranks products by net sales within their category. Equal
// net sales share a rank and the next value gets the following rank.
func (q Queries) ProductRanking(params ProductRankingParams) (*query.Query, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.TopN < 0 {
		return nil, fmt.Errorf("top n must not be negative, got %d", params.TopN)
	}

	productSales := params.where(q.salesWithProducts()).
		Join("categories", "c", builder.On("p.category_id", "c.category_id")).
		Select("p.product_id", "p.product_name", "p.category_id", "c.category_name",
			sqlgen.As(q.netSalesTotal(), "net_sales")).
		GroupBy("p.product_id", "p.product_name", "p.category_id", "c.category_name")
	productSales = params.having(productSales)

	ranked := builder.New(q.dialect).
		Select("product_id", "product_name", "category_id", "category_name", "net_sales").
		From("product_sales").
		Window(builder.DenseRank("sales_rank").
			PartitionBy("category_id").
			OrderBy("net_sales", builder.Desc))

	b := builder.New(q.dialect).
		With("product_sales", productSales).
		With("ranked_products", ranked).
		Select("product_id", "product_name", "category_id", "category_name", "net_sales", "sales_rank").
		From("ranked_products").
		OrderBy("category_id", builder.Asc).
		OrderBy("sales_rank", builder.Asc).
		OrderBy("product_id", builder.Asc)
	if params.TopN > 0 {
		b = b.Where("sales_rank", sqlgen.OpLte, params.TopN)
	}
	return b.Build()
}

// EmployeePerformance ranks employees by total net sales, then units sold,
// with equal pairs sharing a rank. Rows come out by rank, then employee id.
func (q Queries) EmployeePerformance(params EmployeePerformanceParams) (*query.Query, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Limit < 0 {
		return nil, fmt.Errorf("limit must not be negative, got %d", params.Limit)
	}

	employeeSales := params.where(q.salesWithProducts()).
		Join("employees", "e", builder.On("s.sales_person_id", "e.employee_id")).
		Select("e.employee_id", "e.first_name", "e.last_name",
			sqlgen.As(q.netSalesTotal(), "net_sales"),
			sqlgen.As(sqlgen.Sum("s.quantity"), "units")).
		GroupBy("e.employee_id", "e.first_name", "e.last_name")
	employeeSales = params.having(employeeSales)

	b := builder.New(q.dialect).
		With("employee_sales", employeeSales).
		Select("employee_id", "first_name", "last_name", "net_sales", "units").
		From("employee_sales").
		Window(builder.DenseRank("performance_rank").
			OrderBy("net_sales", builder.Desc).
			OrderBy("units", builder.Desc)).
		OrderBy("performance_rank", builder.Asc).
		OrderBy("employee_id", builder.Asc)
	if params.Limit > 0 {
		b = b.Limit(params.Limit)
	}
	return b.Build()
}

// CustomerSegmentation buckets customers by monetary value and by purchase
// frequency into ordered segments of near-equal size. Segment 1 holds the
// highest values; ties at a bucket boundary go to the lower customer id first.
func (q Queries) CustomerSegmentation(params SegmentationParams) (*query.Query, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	segments := params.Segments
	if segments == 0 {
		segments = DefaultSegments
	}
	if segments < 0 {
		return nil, fmt.Errorf("segments must be positive, got %d", segments)
	}

	customerTotals := params.where(q.salesWithProducts()).
		Join("customers", "c", builder.On("s.customer_id", "c.customer_id")).
		Select("c.customer_id", "c.first_name", "c.last_name",
			sqlgen.As(sqlgen.Count("s.sales_id"), "frequency"),
			sqlgen.As(q.netSalesTotal(), "monetary")).
		GroupBy("c.customer_id", "c.first_name", "c.last_name")
	customerTotals = params.having(customerTotals)

	return builder.New(q.dialect).
		With("customer_totals", customerTotals).
		Select("customer_id", "first_name", "last_name", "frequency", "monetary").
		From("customer_totals").
		Window(builder.Ntile(segments, "monetary_segment").
			OrderBy("monetary", builder.Desc).
			OrderBy("customer_id", builder.Asc)).
		Window(builder.Ntile(segments, "frequency_segment").
			OrderBy("frequency", builder.Desc).
			OrderBy("customer_id", builder.Asc)).
		OrderBy("monetary_segment", builder.Asc).
		OrderBy("customer_id", builder.Asc).
		Build()
}

// SalesTrend computes net sales per series key and period, with the change
// from the series' previous period. The first period of a series has a NULL
// previous value and delta.
func (q Queries) SalesTrend(params TrendParams) (*query.Query, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	key, err := params.GroupBy.column()
	if err != nil {
		return nil, err
	}
	grain := params.Grain
	if grain == "" {
		grain = sqlgen.Month
	}
	if _, err := sqlgen.ParseGrain(string(grain)); err != nil {
		return nil, err
	}
	period := q.dialect.Period("s.sales_date", grain)

	periodSales := params.where(q.salesWithProducts()).
		Select(sqlgen.As(key, "group_key"), sqlgen.As(period, "period"),
			sqlgen.As(q.netSalesTotal(), "net_sales")).
		GroupBy(key, period)
	periodSales = params.having(periodSales)

	withPrevious := builder.New(q.dialect).
		Select("group_key", "period", "net_sales").
		From("period_sales").
		Window(builder.Lag("net_sales", 1, "previous_sales").
			PartitionBy("group_key").
			OrderBy("period", builder.Asc))

	return builder.New(q.dialect).
		With("period_sales", periodSales).
		With("sales_with_previous", withPrevious).
		Select("group_key", "period", "net_sales", "previous_sales",
			sqlgen.As("net_sales - previous_sales", "delta")).
		From("sales_with_previous").
		OrderBy("group_key", builder.Asc).
		OrderBy("period", builder.Asc).
		Build()
}

// TopSellingProducts lists the products with the most units sold.
func (q Queries) TopSellingProducts(params TopProductsParams) (*query.Query, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	limit := params.Limit
	if limit == 0 {
		limit = DefaultTopProducts
	}
	if limit < 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	b := params.where(q.salesWithProducts()).
		Join("categories", "c", builder.On("p.category_id", "c.category_id")).
		Select("p.product_id", "p.product_name", "c.category_name",
			sqlgen.As(sqlgen.Sum("s.quantity"), "units_sold")).
		GroupBy("p.product_id", "p.product_name", "c.category_name").
		OrderBy("units_sold", builder.Desc).
		OrderBy("product_id", builder.Asc).
		Limit(limit)
	return params.having(b).Build()
}
