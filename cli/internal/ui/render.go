package ui

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/satishbabariya/salesreport/query"
)

// Format is an output format for result rows.
type Format string

// Output formats.
const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates an output format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatTable, FormatJSON, FormatCSV, FormatYAML, FormatMarkdown:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", name)
	}
}

// Render writes rows to w in format, with columns in the given order.
func Render(w io.Writer, format Format, columns []string, rows query.Rows) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, columns, rows)
	case FormatCSV:
		return renderCSV(w, columns, rows)
	case FormatYAML:
		return renderYAML(w, columns, rows)
	case FormatMarkdown:
		return renderMarkdown(w, columns, rows)
	case FormatTable, "":
		return renderTable(w, columns, rows)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func renderTable(w io.Writer, columns []string, rows query.Rows) error {
	data := pterm.TableData{columns}
	for _, row := range rows {
		data = append(data, cells(columns, row, "NULL"))
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func renderCSV(w io.Writer, columns []string, rows query.Rows) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(cells(columns, row, "")); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderJSON(w io.Writer, columns []string, rows query.Rows) error {
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]interface{}, len(columns))
		for _, col := range columns {
			obj[col] = plain(row[col])
		}
		out = append(out, obj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// renderYAML keeps the column order by building the document as nodes.
func renderYAML(w io.Writer, columns []string, rows query.Rows) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for _, row := range rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, col := range columns {
			var val yaml.Node
			if err := val.Encode(plain(row[col])); err != nil {
				return fmt.Errorf("encode %s: %w", col, err)
			}
			m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: col}, &val)
		}
		doc.Content = append(doc.Content, m)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func renderMarkdown(w io.Writer, columns []string, rows query.Rows) error {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(0))
	if err != nil {
		return err
	}
	out, err := r.Render(MarkdownTable(columns, rows))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// MarkdownTable formats rows as a GitHub-flavoured markdown table.
func MarkdownTable(columns []string, rows query.Rows) string {
	var sb strings.Builder
	sb.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", len(columns)) + "\n")
	for _, row := range rows {
		vals := cells(columns, row, "")
		for i, v := range vals {
			vals[i] = strings.ReplaceAll(v, "|", `\|`)
		}
		sb.WriteString("| " + strings.Join(vals, " | ") + " |\n")
	}
	return sb.String()
}

func cells(columns []string, row query.Row, null string) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = Cell(row[col], null)
	}
	return out
}

// Cell formats a single value for text output. Floating point amounts are
// rounded to cents.
func Cell(v interface{}, null string) string {
	switch x := v.(type) {
	case nil:
		return null
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return decimal.NewFromFloat(x).Round(2).String()
	case json.Number:
		if d, err := decimal.NewFromString(x.String()); err == nil && strings.Contains(x.String(), ".") {
			return d.Round(2).String()
		}
		return x.String()
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// plain converts driver values to ones the encoders print naturally.
func plain(v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	default:
		return v
	}
}
