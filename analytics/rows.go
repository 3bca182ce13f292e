package analytics

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/satishbabariya/salesreport/query"
)

// ProductRank is one row of ProductRanking.
type ProductRank struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	CategoryID   int64           `json:"category_id"`
	CategoryName string          `json:"category_name"`
	NetSales     decimal.Decimal `json:"net_sales"`
	Rank         int64           `json:"sales_rank"`
}

// EmployeeRank is one row of EmployeePerformance.
type EmployeeRank struct {
	EmployeeID int64           `json:"employee_id"`
	FirstName  string          `json:"first_name"`
	LastName   string          `json:"last_name"`
	NetSales   decimal.Decimal `json:"net_sales"`
	Units      int64           `json:"units"`
	Rank       int64           `json:"performance_rank"`
}

// CustomerSegment is one row of CustomerSegmentation.
type CustomerSegment struct {
	CustomerID       int64           `json:"customer_id"`
	FirstName        string          `json:"first_name"`
	LastName         string          `json:"last_name"`
	Frequency        int64           `json:"frequency"`
	Monetary         decimal.Decimal `json:"monetary"`
	MonetarySegment  int64           `json:"monetary_segment"`
	FrequencySegment int64           `json:"frequency_segment"`
}

// TrendPoint is one row of SalesTrend. Previous and Delta are invalid for the
// first period of a series.
type TrendPoint struct {
	GroupKey string              `json:"group_key"`
	Period   string              `json:"period"`
	NetSales decimal.Decimal     `json:"net_sales"`
	Previous decimal.NullDecimal `json:"previous_sales"`
	Delta    decimal.NullDecimal `json:"delta"`
}

// TopProduct is one row of TopSellingProducts.
type TopProduct struct {
	ProductID    int64  `json:"product_id"`
	ProductName  string `json:"product_name"`
	CategoryName string `json:"category_name"`
	UnitsSold    int64  `json:"units_sold"`
}

// DecodeProductRanks converts ProductRanking rows.
func DecodeProductRanks(rows query.Rows) ([]ProductRank, error) {
	out := make([]ProductRank, 0, len(rows))
	for i, row := range rows {
		d := decoder{row: row}
		r := ProductRank{
			ProductID:    d.integer("product_id"),
			ProductName:  d.text("product_name"),
			CategoryID:   d.integer("category_id"),
			CategoryName: d.text("category_name"),
			NetSales:     d.amount("net_sales"),
			Rank:         d.integer("sales_rank"),
		}
		if d.err != nil {
			return nil, fmt.Errorf("row %d: %w", i, d.err)
		}
		out = append(out, r)
	}
	return out, nil
}

// DecodeEmployeeRanks converts EmployeePerformance rows.
func DecodeEmployeeRanks(rows query.Rows) ([]EmployeeRank, error) {
	out := make([]EmployeeRank, 0, len(rows))
	for i, row := range rows {
		d := decoder{row: row}
		r := EmployeeRank{
			EmployeeID: d.integer("employee_id"),
			FirstName:  d.text("first_name"),
			LastName:   d.text("last_name"),
			NetSales:   d.amount("net_sales"),
			Units:      d.integer("units"),
			Rank:       d.integer("performance_rank"),
		}
		if d.err != nil {
			return nil, fmt.Errorf("row %d: %w", i, d.err)
		}
		out = append(out, r)
	}
	return out, nil
}

// DecodeCustomerSegments converts CustomerSegmentation rows.
func DecodeCustomerSegments(rows query.Rows) ([]CustomerSegment, error) {
	out := make([]CustomerSegment, 0, len(rows))
	for i, row := range rows {
		d := decoder{row: row}
		r := CustomerSegment{
			CustomerID:       d.integer("customer_id"),
			FirstName:        d.text("first_name"),
			LastName:         d.text("last_name"),
			Frequency:        d.integer("frequency"),
			Monetary:         d.amount("monetary"),
			MonetarySegment:  d.integer("monetary_segment"),
			FrequencySegment: d.integer("frequency_segment"),
		}
		if d.err != nil {
			return nil, fmt.Errorf("row %d: %w", i, d.err)
		}
		out = append(out, r)
	}
	return out, nil
}

// DecodeTrendPoints converts SalesTrend rows.
func DecodeTrendPoints(rows query.Rows) ([]TrendPoint, error) {
	out := make([]TrendPoint, 0, len(rows))
	for i, row := range rows {
		d := decoder{row: row}
		r := TrendPoint{
			GroupKey: d.text("group_key"),
			Period:   d.text("period"),
			NetSales: d.amount("net_sales"),
			Previous: d.nullAmount("previous_sales"),
			Delta:    d.nullAmount("delta"),
		}
		if d.err != nil {
			return nil, fmt.Errorf("row %d: %w", i, d.err)
		}
		out = append(out, r)
	}
	return out, nil
}

// DecodeTopProducts converts TopSellingProducts rows.
func DecodeTopProducts(rows query.Rows) ([]TopProduct, error) {
	out := make([]TopProduct, 0, len(rows))
	for i, row := range rows {
		d := decoder{row: row}
		r := TopProduct{
			ProductID:    d.integer("product_id"),
			ProductName:  d.text("product_name"),
			CategoryName: d.text("category_name"),
			UnitsSold:    d.integer("units_sold"),
		}
		if d.err != nil {
			return nil, fmt.Errorf("row %d: %w", i, d.err)
		}
		out = append(out, r)
	}
	return out, nil
}

// decoder reads columns out of a row and keeps the first error. Drivers and
// the persistent cache tier hand back different Go types for one SQL type,
// so every accessor accepts all of them.
type decoder struct {
	row query.Row
	err error
}

func (d *decoder) fail(column string, v interface{}, want string) {
	if d.err == nil {
		d.err = fmt.Errorf("column %s: cannot convert %T to %s", column, v, want)
	}
}

func (d *decoder) value(column string) (interface{}, bool) {
	v, ok := d.row[column]
	if !ok {
		if d.err == nil {
			d.err = fmt.Errorf("column %s: missing", column)
		}
		return nil, false
	}
	return v, true
}

func (d *decoder) integer(column string) int64 {
	v, ok := d.value(column)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int64(f)
		}
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i
		}
	case []byte:
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return i
		}
	}
	d.fail(column, v, "int64")
	return 0
}

func (d *decoder) text(column string) string {
	v, ok := d.value(column)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case json.Number:
		return s.String()
	case int64, int, float64:
		return fmt.Sprint(s)
	}
	d.fail(column, v, "string")
	return ""
}

func (d *decoder) amount(column string) decimal.Decimal {
	v, ok := d.value(column)
	if !ok || v == nil {
		return decimal.Zero
	}
	if dec, ok := toDecimal(v); ok {
		return dec
	}
	d.fail(column, v, "decimal")
	return decimal.Zero
}

func (d *decoder) nullAmount(column string) decimal.NullDecimal {
	v, ok := d.value(column)
	if !ok || v == nil {
		return decimal.NullDecimal{}
	}
	if dec, ok := toDecimal(v); ok {
		return decimal.NewNullDecimal(dec)
	}
	d.fail(column, v, "decimal")
	return decimal.NullDecimal{}
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case json.Number:
		dec, err := decimal.NewFromString(n.String())
		return dec, err == nil
	case string:
		dec, err := decimal.NewFromString(n)
		return dec, err == nil
	case []byte:
		dec, err := decimal.NewFromString(string(n))
		return dec, err == nil
	}
	return decimal.Decimal{}, false
}
