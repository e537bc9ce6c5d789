// Package importer turns uploaded sheets into validated, typed rows ready for upsert.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sangkips/coopmart-api/pkg/workbook"
)

// ErrUnsupportedFormat is returned for uploads that are neither xlsx nor csv
var ErrUnsupportedFormat = errors.New("unsupported file format, expected .xlsx or .csv")

// Record is one data row keyed by normalized column name. Row is the 1-based sheet row.
type Record struct {
	Row    int
	Values map[string]string
}

func (r Record) get(column string) string {
	return strings.TrimSpace(r.Values[column])
}

func (r Record) has(column string) bool {
	_, ok := r.Values[column]
	return ok
}

// Table is a parsed sheet: normalized headers plus data records
type Table struct {
	Columns []string
	Records []Record
}

// MissingColumns lists the required columns absent from the header
func (t Table) MissingColumns(required ...string) []string {
	present := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		present[c] = true
	}
	var missing []string
	for _, c := range required {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// Read parses an upload by file extension, sniffing the xlsx zip signature when the name is unknown
func Read(r io.Reader, filename string) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return readXLSX(data)
	case ".csv":
		return readCSV(data)
	case "":
		if bytes.HasPrefix(data, []byte("PK")) {
			return readXLSX(data)
		}
		return readCSV(data)
	default:
		return Table{}, ErrUnsupportedFormat
	}
}

func readXLSX(data []byte) (Table, error) {
	rows, err := workbook.ReadRows(bytes.NewReader(data))
	if err != nil {
		return Table{}, err
	}
	return fromRows(rows), nil
}

func readCSV(data []byte) (Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("read csv: %w", err)
	}
	return fromRows(rows), nil
}

func fromRows(rows [][]string) Table {
	if len(rows) == 0 {
		return Table{}
	}

	columns := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		columns[i] = NormalizeHeader(h)
	}

	table := Table{Columns: columns}
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		values := make(map[string]string, len(columns))
		for j, col := range columns {
			if col == "" || j >= len(row) {
				continue
			}
			values[col] = row[j]
		}
		table.Records = append(table.Records, Record{Row: i + 2, Values: values})
	}
	return table
}

// FromMaps builds a table from JSON rows; row numbers start at 1
func FromMaps(rows []map[string]interface{}) Table {
	seen := map[string]bool{}
	table := Table{}
	for i, row := range rows {
		values := make(map[string]string, len(row))
		for k, v := range row {
			col := NormalizeHeader(k)
			if !seen[col] {
				seen[col] = true
				table.Columns = append(table.Columns, col)
			}
			values[col] = stringify(v)
		}
		table.Records = append(table.Records, Record{Row: i + 1, Values: values})
	}
	return table
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var headerAliases = map[string]string{
	"memberno":        "member_no",
	"member_number":   "member_no",
	"member_id":       "member_no",
	"staff_no":        "member_no",
	"member_name":     "name",
	"full_name":       "name",
	"item_name":       "name",
	"item":            "name",
	"savings_balance": "savings",
	"loan":            "loans",
	"loan_balance":    "loans",
	"limit":           "global_limit",
	"globallimit":     "global_limit",
	"branch":          "branch_code",
	"branchcode":      "branch_code",
	"home_branch":     "branch_code",
	"dept":            "department",
	"department_name": "department",
	"item_code":       "sku",
	"code":            "sku",
	"price":           "base_price",
	"baseprice":       "base_price",
	"stock":           "initial_stock",
	"qty":             "initial_stock",
	"quantity":        "initial_stock",
	"markup":          "amount",
	"markup_amount":   "amount",
	"image":           "image_ref",
}

// NormalizeHeader lower-cases a header, joins words with underscores and resolves aliases
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '/':
			return '_'
		}
		return r
	}, h)
	for strings.Contains(h, "__") {
		h = strings.ReplaceAll(h, "__", "_")
	}
	h = strings.Trim(h, "_")
	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	return h
}
