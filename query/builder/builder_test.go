package builder_test

import (
	"strings"
	"testing"

	"github.com/satishbabariya/salesreport/query"
	"github.com/satishbabariya/salesreport/query/builder"
	"github.com/satishbabariya/salesreport/query/sqlgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_SelectJoinWhere(t *testing.T) {
	q, err := builder.New(sqlgen.SQLite).
		Select("p.product_name", "SUM(s.quantity) AS units").
		FromAs("sales", "s").
		Join("products", "p", builder.On("s.product_id", "p.product_id")).
		Where("p.category_id", "=", 3).
		GroupBy("p.product_name").
		OrderBy("units", builder.Desc).
		Limit(10).
		Build()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT p.product_name, SUM(s.quantity) AS units FROM sales AS s "+
			"INNER JOIN products AS p ON s.product_id = p.product_id "+
			"WHERE p.category_id = ? GROUP BY p.product_name ORDER BY units DESC LIMIT ?",
		q.SQL)
	assert.Equal(t, []interface{}{3, 10}, q.Args)
	assert.Equal(t, []string{"products", "sales"}, q.Tables)
	assert.Len(t, q.Fingerprint.String(), 64)
}

func TestBuilder_CallOrderIndependence(t *testing.T) {
	a, err := builder.New(sqlgen.SQLite).
		From("sales").
		Select("sales_id").
		Where("quantity", ">", 2).
		Where("discount", "<", 0.5).
		OrderBy("sales_id", "").
		Build()
	require.NoError(t, err)

	b, err := builder.New(sqlgen.SQLite).
		OrderBy("sales_id", "asc").
		Where("discount", "<", 0.5).
		Select("sales_id").
		Where("quantity", ">", 2).
		From("sales").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "SELECT sales_id FROM sales WHERE discount < ? AND quantity > ? ORDER BY sales_id ASC", a.SQL)
	assert.Equal(t, a.SQL, b.SQL)
	assert.Equal(t, a.Args, b.Args)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
}

func TestBuilder_FingerprintDependsOnParams(t *testing.T) {
	build := func(v interface{}) query.Fingerprint {
		q, err := builder.New(sqlgen.SQLite).Select("sales_id").From("sales").Where("customer_id", "=", v).Build()
		require.NoError(t, err)
		return q.Fingerprint
	}

	assert.Equal(t, build(7), build(7))
	assert.NotEqual(t, build(7), build(8))
	assert.NotEqual(t, build(7), build("7"))
}

func TestBuilder_FingerprintDependsOnDialect(t *testing.T) {
	sqliteQ, err := builder.New(sqlgen.SQLite).Select("sales_id").From("sales").Build()
	require.NoError(t, err)
	mysqlQ, err := builder.New(sqlgen.MySQL).Select("sales_id").From("sales").Build()
	require.NoError(t, err)

	assert.Equal(t, sqliteQ.SQL, mysqlQ.SQL)
	assert.NotEqual(t, sqliteQ.Fingerprint, mysqlQ.Fingerprint)
}

func TestBuilder_ValuesAreNeverInlined(t *testing.T) {
	hostile := "x'; DROP TABLE sales; --"
	q, err := builder.New(sqlgen.SQLite).
		Select("customer_id").
		From("customers").
		Where("first_name", "=", hostile).
		WhereIn("city_id", 1, 2, 3).
		WhereBetween("customer_id", 10, 20).
		Build()
	require.NoError(t, err)

	assert.NotContains(t, q.SQL, "DROP")
	assert.Equal(t, strings.Count(q.SQL, "?"), len(q.Args))
	assert.Contains(t, q.Args, hostile)
}

func TestBuilder_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		b    *builder.Builder
	}{
		{"no source table", builder.New(sqlgen.SQLite).Select("id")},
		{"no projection", builder.New(sqlgen.SQLite).From("sales")},
		{"bad where field", builder.New(sqlgen.SQLite).Select("id").From("sales").Where("id = 1 OR 1", "=", 1)},
		{"bad operator", builder.New(sqlgen.SQLite).Select("id").From("sales").Where("id", "~", 1)},
		{"empty in list", builder.New(sqlgen.SQLite).Select("id").From("sales").WhereIn("id")},
		{"bad table", builder.New(sqlgen.SQLite).Select("id").From("sales; DELETE FROM sales")},
		{"bad having", builder.New(sqlgen.SQLite).Select("id").From("sales").Having("1=1 OR x", ">", 1)},
		{"comment in select", builder.New(sqlgen.SQLite).Select("id -- x").From("sales")},
		{"bad direction", builder.New(sqlgen.SQLite).Select("id").From("sales").OrderBy("id", "sideways")},
		{"negative limit", builder.New(sqlgen.SQLite).Select("id").From("sales").Limit(-1)},
		{"join without predicate", builder.New(sqlgen.SQLite).Select("id").From("sales").Join("products", "p")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.Build()
			require.Error(t, err)
			assert.ErrorIs(t, err, query.ErrBuild)
			assert.True(t, query.IsBuildError(err))
		})
	}
}

func TestBuilder_ClauseCallsDoNotMutateReceiver(t *testing.T) {
	base := builder.New(sqlgen.SQLite).Select("sales_id").From("sales")
	filtered := base.Where("quantity", ">", 5)

	q, err := base.Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT sales_id FROM sales", q.SQL)
	assert.Empty(t, q.Args)

	fq, err := filtered.Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT sales_id FROM sales WHERE quantity > ?", fq.SQL)
}

func TestBuilder_SealedAfterBuild(t *testing.T) {
	b := builder.New(sqlgen.SQLite).Select("sales_id").From("sales")
	first, err := b.Build()
	require.NoError(t, err)

	again, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, first.SQL, again.SQL)

	_, err = b.Where("quantity", ">", 1).Build()
	assert.ErrorIs(t, err, builder.ErrBuilderSealed)
}

func TestBuilder_InvalidAfterFailedBuild(t *testing.T) {
	b := builder.New(sqlgen.SQLite).Select("sales_id")
	_, err := b.Build()
	require.Error(t, err)

	_, sealed := b.From("sales").Build()
	assert.ErrorIs(t, sealed, builder.ErrBuilderSealed)

	_, again := b.Build()
	assert.Equal(t, err, again)
}

func TestBuilder_CTEDependencyOrder(t *testing.T) {
	recent := builder.New(sqlgen.PostgreSQL).
		Select("s.product_id", "SUM(s.quantity) AS units").
		FromAs("sales", "s").
		Where("s.quantity", ">", 1).
		GroupBy("s.product_id")
	ranked := builder.New(sqlgen.PostgreSQL).
		Select("product_id", "units").
		From("recent").
		Where("units", ">=", 5)

	q, err := builder.New(sqlgen.PostgreSQL).
		With("ranked", ranked).
		With("recent", recent).
		Select("product_id").
		From("ranked").
		Limit(3).
		Build()
	require.NoError(t, err)

	assert.Equal(t,
		"WITH recent AS (SELECT s.product_id, SUM(s.quantity) AS units FROM sales AS s WHERE s.quantity > $1 GROUP BY s.product_id), "+
			"ranked AS (SELECT product_id, units FROM recent WHERE units >= $2) "+
			"SELECT product_id FROM ranked LIMIT $3",
		q.SQL)
	assert.Equal(t, []interface{}{1, 5, 3}, q.Args)
	assert.Equal(t, []string{"sales"}, q.Tables)
}

func TestBuilder_CyclicCTE(t *testing.T) {
	a := builder.New(sqlgen.SQLite).Select("id").From("b")
	b := builder.New(sqlgen.SQLite).Select("id").From("a")

	_, err := builder.New(sqlgen.SQLite).With("a", a).With("b", b).Select("id").From("a").Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, query.ErrCyclicCTE)

	var cyclic *query.CyclicCTEError
	require.ErrorAs(t, err, &cyclic)
	assert.Equal(t, []string{"a", "b", "a"}, cyclic.Cycle)
}

func TestBuilder_SelfReferencingCTE(t *testing.T) {
	self := builder.New(sqlgen.SQLite).Select("id").From("loop")

	_, err := builder.New(sqlgen.SQLite).With("loop", self).Select("id").From("loop").Build()

	var cyclic *query.CyclicCTEError
	require.ErrorAs(t, err, &cyclic)
	assert.Equal(t, []string{"loop", "loop"}, cyclic.Cycle)
}

func TestBuilder_HoistsNestedCTEs(t *testing.T) {
	base := builder.New(sqlgen.SQLite).Select("id").From("sales")
	mid := builder.New(sqlgen.SQLite).With("base", base).Select("id").From("base")

	q, err := builder.New(sqlgen.SQLite).With("mid", mid).Select("id").From("mid").Build()
	require.NoError(t, err)
	assert.Equal(t, "WITH base AS (SELECT id FROM sales), mid AS (SELECT id FROM base) SELECT id FROM mid", q.SQL)

	same := builder.New(sqlgen.SQLite).Select("id").From("sales")
	_, err = builder.New(sqlgen.SQLite).With("mid", mid).With("base", same).Select("id").From("mid").Build()
	assert.NoError(t, err)

	other := builder.New(sqlgen.SQLite).Select("customer_id").From("sales")
	_, err = builder.New(sqlgen.SQLite).With("mid", mid).With("base", other).Select("id").From("mid").Build()
	assert.ErrorIs(t, err, query.ErrBuild)
}

func TestBuilder_WindowFunctions(t *testing.T) {
	q, err := builder.New(sqlgen.SQLite).
		Select("product_id", "category_id").
		From("product_sales").
		Window(builder.DenseRank("sales_rank").PartitionBy("category_id").OrderBy("net_sales", builder.Desc)).
		Window(builder.Ntile(4, "bucket").OrderBy("net_sales", builder.Desc).OrderBy("product_id", builder.Asc)).
		Build()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT product_id, category_id, DENSE_RANK() OVER w_sales_rank AS sales_rank, NTILE(4) OVER w_bucket AS bucket "+
			"FROM product_sales "+
			"WINDOW w_sales_rank AS (PARTITION BY category_id ORDER BY net_sales DESC), "+
			"w_bucket AS (ORDER BY net_sales DESC, product_id ASC)",
		q.SQL)
}

func TestBuilder_WindowValidation(t *testing.T) {
	tests := []struct {
		name string
		w    builder.WindowFunction
	}{
		{"rank without ordering", builder.DenseRank("r")},
		{"ntile without buckets", builder.Ntile(0, "b").OrderBy("x", "")},
		{"lag without offset", builder.Lag("x", 0, "prev").OrderBy("period", "")},
		{"unknown function", builder.Aggregate("MEDIAN", "x", "m")},
		{"bad partition column", builder.RowNumber("n").PartitionBy("a b").OrderBy("x", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := builder.New(sqlgen.SQLite).Select("id").From("sales").Window(tt.w).Build()
			assert.ErrorIs(t, err, query.ErrBuild)
		})
	}
}

func TestBuilder_MySQLOffsetWithoutLimit(t *testing.T) {
	q, err := builder.New(sqlgen.MySQL).Select("sales_id").From("sales").Offset(20).Build()
	require.NoError(t, err)

	assert.Equal(t, "SELECT sales_id FROM sales LIMIT 18446744073709551615 OFFSET ?", q.SQL)
	assert.Equal(t, []interface{}{20}, q.Args)
}

func TestBuilder_Having(t *testing.T) {
	q, err := builder.New(sqlgen.PostgreSQL).
		Select("s.product_id", "SUM(s.quantity) AS units").
		FromAs("sales", "s").
		Where("s.discount", "<", 0.2).
		GroupBy("s.product_id").
		Having("SUM(s.quantity)", ">=", 10).
		Build()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT s.product_id, SUM(s.quantity) AS units FROM sales AS s WHERE s.discount < $1 "+
			"GROUP BY s.product_id HAVING SUM(s.quantity) >= $2",
		q.SQL)
	assert.Equal(t, []interface{}{0.2, 10}, q.Args)
}

func TestBuilder_NullPredicatesBindNothing(t *testing.T) {
	q, err := builder.New(sqlgen.SQLite).
		Select("sales_id").
		From("sales").
		WhereNull("total_price").
		Where("quantity", ">", 1).
		WhereNotNull("discount").
		Build()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT sales_id FROM sales WHERE discount IS NOT NULL AND quantity > ? AND total_price IS NULL",
		q.SQL)
	assert.Equal(t, []interface{}{1}, q.Args)
	assert.Equal(t, len(q.Args), strings.Count(q.SQL, "?"))

	_, err = builder.New(sqlgen.SQLite).Select("sales_id").From("sales").Where("discount", "IS NULL", 0).Build()
	assert.ErrorIs(t, err, query.ErrBuild)
}

func TestBuilder_LeadWindow(t *testing.T) {
	q, err := builder.New(sqlgen.SQLite).
		Select("product_id", "period").
		From("period_sales").
		Window(builder.Lead("net_sales", 2, "next_sales").PartitionBy("product_id").OrderBy("period", builder.Asc)).
		Build()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT product_id, period, LEAD(net_sales, 2) OVER w_next_sales AS next_sales FROM period_sales "+
			"WINDOW w_next_sales AS (PARTITION BY product_id ORDER BY period ASC)",
		q.SQL)
	assert.Empty(t, q.Args)

	_, err = builder.New(sqlgen.SQLite).
		Select("product_id").
		From("period_sales").
		Window(builder.Lead("net_sales", 1, "next_sales")).
		Build()
	assert.ErrorIs(t, err, query.ErrBuild)
}

func TestBuilder_PostgresNumberingAcrossCTEAndOuterQuery(t *testing.T) {
	recent := builder.New(sqlgen.PostgreSQL).
		Select("product_id", "quantity").
		From("sales").
		WhereBetween("sales_date", "2018-01-01", "2018-02-01").
		Where("quantity", ">", 1)

	q, err := builder.New(sqlgen.PostgreSQL).
		With("recent", recent).
		Select("product_id").
		From("recent").
		WhereIn("product_id", 4, 5).
		OrderBy("product_id", builder.Asc).
		Limit(10).
		Build()
	require.NoError(t, err)

	assert.Equal(t,
		"WITH recent AS (SELECT product_id, quantity FROM sales WHERE quantity > $1 AND sales_date BETWEEN $2 AND $3) "+
			"SELECT product_id FROM recent WHERE product_id IN ($4, $5) ORDER BY product_id ASC LIMIT $6",
		q.SQL)
	assert.Equal(t, []interface{}{1, "2018-01-01", "2018-02-01", 4, 5, 10}, q.Args)
	assert.Equal(t, []string{"sales"}, q.Tables)
}
