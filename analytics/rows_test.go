package analytics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/salesreport/query"
	"github.com/satishbabariya/salesreport/query/sqlgen"
)

func TestDecodeTrendPoints_AcceptsDriverAndStoredTypes(t *testing.T) {
	rows := query.Rows{
		// database/sql types
		{"group_key": int64(3), "period": "2018-01", "net_sales": 100.5, "previous_sales": nil, "delta": nil},
		// persisted JSON types
		{"group_key": json.Number("3"), "period": []byte("2018-02"), "net_sales": json.Number("150.25"), "previous_sales": json.Number("100.5"), "delta": "49.75"},
	}

	points, err := DecodeTrendPoints(rows)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "3", points[0].GroupKey)
	assert.Equal(t, "100.5", points[0].NetSales.String())
	assert.False(t, points[0].Delta.Valid)

	assert.Equal(t, "3", points[1].GroupKey)
	assert.Equal(t, "2018-02", points[1].Period)
	assert.Equal(t, "150.25", points[1].NetSales.String())
	assert.True(t, points[1].Previous.Valid)
	assert.Equal(t, "49.75", points[1].Delta.Decimal.String())
}

func TestDecodeProductRanks_Integers(t *testing.T) {
	rows := query.Rows{{
		"product_id": json.Number("7"), "product_name": "Bread", "category_id": "2",
		"category_name": []byte("Bakery"), "net_sales": int64(40), "sales_rank": 1.0,
	}}

	ranks, err := DecodeProductRanks(rows)
	require.NoError(t, err)
	require.Len(t, ranks, 1)
	assert.Equal(t, ProductRank{
		ProductID:    7,
		ProductName:  "Bread",
		CategoryID:   2,
		CategoryName: "Bakery",
		NetSales:     ranks[0].NetSales,
		Rank:         1,
	}, ranks[0])
	assert.Equal(t, "40", ranks[0].NetSales.String())
}

func TestDecode_Errors(t *testing.T) {
	_, err := DecodeTopProducts(query.Rows{{"product_id": int64(1), "product_name": "x", "category_name": "y"}})
	assert.ErrorContains(t, err, "row 0: column units_sold: missing")

	_, err = DecodeEmployeeRanks(query.Rows{{
		"employee_id": true, "first_name": "a", "last_name": "b",
		"net_sales": 1.0, "units": int64(1), "performance_rank": int64(1),
	}})
	assert.ErrorContains(t, err, "cannot convert bool to int64")

	_, err = DecodeCustomerSegments(query.Rows{{
		"customer_id": int64(1), "first_name": "a", "last_name": "b", "frequency": int64(1),
		"monetary": "lots", "monetary_segment": int64(1), "frequency_segment": int64(1),
	}})
	assert.ErrorContains(t, err, "column monetary")
}

func TestReports_Registry(t *testing.T) {
	reports := Reports()
	var names []string
	for _, r := range reports {
		names = append(names, r.Name)
		assert.NotEmpty(t, r.Description)
		assert.NotEmpty(t, r.Columns)
	}
	assert.Equal(t, []string{
		ReportCustomerSegmentation,
		ReportEmployeePerformance,
		ReportProductRanking,
		ReportSalesTrend,
		ReportTopProducts,
	}, names)

	r, err := LookupReport(ReportSalesTrend)
	require.NoError(t, err)
	q, err := r.Build(NewQueries(sqlgen.PostgreSQL), Options{Grain: sqlgen.Year, GroupBy: ByEmployee})
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "to_char(s.sales_date, 'YYYY')")
	assert.Contains(t, q.SQL, "s.sales_person_id AS group_key")

	_, err = LookupReport("revenue")
	assert.Error(t, err)
}
