package analytics

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/salesreport/query"
	"github.com/satishbabariya/salesreport/query/sqlgen"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func golden(q *query.Query) []byte {
	var sb strings.Builder
	sb.WriteString(q.SQL)
	sb.WriteString("\n")
	for i, arg := range q.Args {
		fmt.Fprintf(&sb, "-- %d: %#v\n", i+1, arg)
	}
	return []byte(sb.String())
}

func TestQueries_Golden(t *testing.T) {
	firstQuarter := DateRange{From: date(2018, 1, 1), To: date(2018, 4, 1)}
	january := DateRange{From: date(2018, 1, 1), To: date(2018, 2, 1)}

	tests := []struct {
		name  string
		build func() (*query.Query, error)
	}{
		{"product_ranking_sqlite", func() (*query.Query, error) {
			return NewQueries(sqlgen.SQLite).ProductRanking(ProductRankingParams{
				Filters: Filters{Period: firstQuarter, CategoryID: 3},
				TopN:    5,
			})
		}},
		{"employee_performance_sqlite", func() (*query.Query, error) {
			return NewQueries(sqlgen.SQLite).EmployeePerformance(EmployeePerformanceParams{
				Filters: Filters{MinUnits: 100},
				Limit:   10,
			})
		}},
		{"customer_segmentation_sqlite", func() (*query.Query, error) {
			return NewQueries(sqlgen.SQLite).CustomerSegmentation(SegmentationParams{})
		}},
		{"sales_trend_sqlite", func() (*query.Query, error) {
			return NewQueries(sqlgen.SQLite).SalesTrend(TrendParams{})
		}},
		{"sales_trend_postgres", func() (*query.Query, error) {
			return NewQueries(sqlgen.PostgreSQL).SalesTrend(TrendParams{
				Filters: Filters{Period: january},
				Grain:   sqlgen.Day,
				GroupBy: ByProduct,
			})
		}},
		{"sales_trend_mysql", func() (*query.Query, error) {
			return NewQueries(sqlgen.MySQL).SalesTrend(TrendParams{Grain: sqlgen.Year})
		}},
		{"top_products_sqlite", func() (*query.Query, error) {
			return NewQueries(sqlgen.SQLite).TopSellingProducts(TopProductsParams{
				Filters: Filters{CategoryID: 2, MinUnits: 50},
			})
		}},
	}

	g := goldie.New(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tt.build()
			require.NoError(t, err)
			g.Assert(t, tt.name, golden(q))
		})
	}
}

func TestQueries_PlaceholdersMatchArgs(t *testing.T) {
	filters := Filters{Period: DateRange{From: date(2018, 1, 1), To: date(2018, 6, 1)}, CategoryID: 1, MinUnits: 5}

	for _, dialect := range []sqlgen.Dialect{sqlgen.SQLite, sqlgen.MySQL, sqlgen.PostgreSQL} {
		q := NewQueries(dialect)
		for name, build := range map[string]func() (*query.Query, error){
			"ranking":      func() (*query.Query, error) { return q.ProductRanking(ProductRankingParams{Filters: filters, TopN: 3}) },
			"performance":  func() (*query.Query, error) { return q.EmployeePerformance(EmployeePerformanceParams{Filters: filters, Limit: 5}) },
			"segmentation": func() (*query.Query, error) { return q.CustomerSegmentation(SegmentationParams{Filters: filters}) },
			"trend":        func() (*query.Query, error) { return q.SalesTrend(TrendParams{Filters: filters}) },
			"top":          func() (*query.Query, error) { return q.TopSellingProducts(TopProductsParams{Filters: filters}) },
		} {
			t.Run(string(dialect)+"/"+name, func(t *testing.T) {
				built, err := build()
				require.NoError(t, err)

				if dialect == sqlgen.PostgreSQL {
					assert.NotContains(t, built.SQL, "?")
					assert.Contains(t, built.SQL, fmt.Sprintf("$%d", len(built.Args)))
					assert.NotContains(t, built.SQL, fmt.Sprintf("$%d", len(built.Args)+1))
				} else {
					assert.Equal(t, len(built.Args), strings.Count(built.SQL, "?"))
				}
				assert.NotContains(t, built.SQL, "2018-01-01")
				assert.Contains(t, built.Tables, "sales")
				assert.Contains(t, built.Tables, "products")
			})
		}
	}
}

func TestQueries_Deterministic(t *testing.T) {
	params := ProductRankingParams{Filters: Filters{CategoryID: 4}, TopN: 2}

	a, err := NewQueries(sqlgen.SQLite).ProductRanking(params)
	require.NoError(t, err)
	b, err := NewQueries(sqlgen.SQLite).ProductRanking(params)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)

	params.TopN = 3
	c, err := NewQueries(sqlgen.SQLite).ProductRanking(params)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint, c.Fingerprint)
	assert.Equal(t, a.SQL, c.SQL)
}

func TestQueries_RejectInvalidParams(t *testing.T) {
	q := NewQueries(sqlgen.SQLite)
	backwards := DateRange{From: date(2018, 5, 1), To: date(2018, 1, 1)}

	_, err := q.ProductRanking(ProductRankingParams{Filters: Filters{Period: backwards}})
	assert.Error(t, err)

	_, err = q.ProductRanking(ProductRankingParams{TopN: -1})
	assert.Error(t, err)

	_, err = q.EmployeePerformance(EmployeePerformanceParams{Filters: Filters{MinUnits: -2}})
	assert.Error(t, err)

	_, err = q.CustomerSegmentation(SegmentationParams{Segments: -4})
	assert.Error(t, err)

	_, err = q.SalesTrend(TrendParams{Grain: "fortnight"})
	assert.Error(t, err)

	_, err = q.SalesTrend(TrendParams{GroupBy: "region"})
	assert.Error(t, err)

	_, err = q.TopSellingProducts(TopProductsParams{Limit: -1})
	assert.Error(t, err)
}
