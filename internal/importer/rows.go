package importer

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Kind names an importable sheet
type Kind string

const (
	KindMembers Kind = "members"
	KindItems   Kind = "items"
	KindPrices  Kind = "prices"
	KindMarkups Kind = "markups"
)

// ParseKind validates a kind taken from a route or CLI argument
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMembers, KindItems, KindPrices, KindMarkups:
		return k, nil
	}
	return "", fmt.Errorf("unknown import kind %q", s)
}

// RequiredColumns lists the header columns each kind cannot do without
func RequiredColumns(kind Kind) []string {
	switch kind {
	case KindMembers:
		return []string{"member_no", "name"}
	case KindItems:
		return []string{"sku", "name"}
	case KindPrices:
		return []string{"branch_code", "sku", "base_price"}
	case KindMarkups:
		return []string{"branch_code", "sku", "amount"}
	}
	return nil
}

// MemberRow is one line of a members sheet
type MemberRow struct {
	Row         int
	MemberNo    string          `col:"member_no" validate:"required,max=32,code"`
	Name        string          `col:"name" validate:"required,max=255"`
	Category    string          `col:"category" validate:"max=64"`
	Savings     decimal.Decimal `col:"savings" validate:"gte=0"`
	Loans       decimal.Decimal `col:"loans" validate:"gte=0"`
	GlobalLimit decimal.Decimal `col:"global_limit" validate:"gte=0"`
	BranchCode  string          `col:"branch_code" validate:"omitempty,code"`
	Department  string          `col:"department" validate:"max=128"`
}

// ItemRow is one line of an item master sheet
type ItemRow struct {
	Row      int
	SKU      string `col:"sku" validate:"required,max=64,code"`
	Name     string `col:"name" validate:"required,max=255"`
	Unit     string `col:"unit" validate:"max=32"`
	Category string `col:"category" validate:"max=64"`
	ImageRef string `col:"image_ref" validate:"max=512"`
}

// PriceRow is one line of a prices sheet. Name lets the import create a missing item.
type PriceRow struct {
	Row          int
	BranchCode   string          `col:"branch_code" validate:"required,code"`
	SKU          string          `col:"sku" validate:"required,max=64,code"`
	Name         string          `col:"name" validate:"max=255"`
	BasePrice    decimal.Decimal `col:"base_price" validate:"gte=0"`
	InitialStock int             `col:"initial_stock" validate:"gte=0"`
}

// MarkupRow is one line of a markups sheet
type MarkupRow struct {
	Row        int
	BranchCode string          `col:"branch_code" validate:"required,code"`
	SKU        string          `col:"sku" validate:"required,max=64,code"`
	Amount     decimal.Decimal `col:"amount" validate:"gte=0"`
	Active     bool            `col:"active"`
}

// RowError locates one invalid cell
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Batch holds the rows that passed their schema and the errors of those that did not
type Batch[T any] struct {
	Rows    []T
	Invalid []RowError
}

var codePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-/]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("col"); name != "" {
			return name
		}
		return f.Name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("code", func(fl validator.FieldLevel) bool {
		return codePattern.MatchString(fl.Field().String())
	})
	return v
}

func parse[T any](table Table, decode func(Record) (T, []RowError)) Batch[T] {
	batch := Batch[T]{Rows: make([]T, 0, len(table.Records))}
	for _, rec := range table.Records {
		row, errs := decode(rec)
		if len(errs) == 0 {
			errs = validateRow(rec.Row, row)
		}
		if len(errs) > 0 {
			batch.Invalid = append(batch.Invalid, errs...)
			continue
		}
		batch.Rows = append(batch.Rows, row)
	}
	return batch
}

func validateRow(rowNo int, row interface{}) []RowError {
	err := validate.Struct(row)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []RowError{{Row: rowNo, Message: err.Error()}}
	}
	out := make([]RowError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, RowError{Row: rowNo, Field: fe.Field(), Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must not be negative"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "code":
		return "must contain only letters, digits, '-', '_' or '/'"
	}
	return "is invalid (" + fe.Tag() + ")"
}

// ParseMembers decodes and validates a members sheet
func ParseMembers(table Table) Batch[MemberRow] {
	return parse(table, func(rec Record) (MemberRow, []RowError) {
		var errs []RowError
		row := MemberRow{
			Row:        rec.Row,
			MemberNo:   rec.get("member_no"),
			Name:       rec.get("name"),
			Category:   rec.get("category"),
			BranchCode: rec.get("branch_code"),
			Department: rec.get("department"),
		}
		row.Savings = moneyField(rec, "savings", &errs)
		row.Loans = moneyField(rec, "loans", &errs)
		row.GlobalLimit = moneyField(rec, "global_limit", &errs)
		return row, errs
	})
}

// ParseItems decodes and validates an item master sheet
func ParseItems(table Table) Batch[ItemRow] {
	return parse(table, func(rec Record) (ItemRow, []RowError) {
		return ItemRow{
			Row:      rec.Row,
			SKU:      rec.get("sku"),
			Name:     rec.get("name"),
			Unit:     rec.get("unit"),
			Category: rec.get("category"),
			ImageRef: rec.get("image_ref"),
		}, nil
	})
}

// ParsePrices decodes and validates a prices sheet
func ParsePrices(table Table) Batch[PriceRow] {
	return parse(table, func(rec Record) (PriceRow, []RowError) {
		var errs []RowError
		row := PriceRow{
			Row:        rec.Row,
			BranchCode: rec.get("branch_code"),
			SKU:        rec.get("sku"),
			Name:       rec.get("name"),
		}
		if rec.get("base_price") == "" {
			errs = append(errs, RowError{Row: rec.Row, Field: "base_price", Message: "is required"})
		} else {
			row.BasePrice = moneyField(rec, "base_price", &errs)
		}
		row.InitialStock = intField(rec, "initial_stock", &errs)
		return row, errs
	})
}

// ParseMarkups decodes and validates a markups sheet. A missing active column means active.
func ParseMarkups(table Table) Batch[MarkupRow] {
	return parse(table, func(rec Record) (MarkupRow, []RowError) {
		var errs []RowError
		row := MarkupRow{
			Row:        rec.Row,
			BranchCode: rec.get("branch_code"),
			SKU:        rec.get("sku"),
			Active:     true,
		}
		row.Amount = moneyField(rec, "amount", &errs)
		if rec.has("active") {
			active, err := ParseBool(rec.get("active"), true)
			if err != nil {
				errs = append(errs, RowError{Row: rec.Row, Field: "active", Message: err.Error()})
			}
			row.Active = active
		}
		return row, errs
	})
}

func moneyField(rec Record, column string, errs *[]RowError) decimal.Decimal {
	d, err := ParseMoney(rec.get(column))
	if err != nil {
		*errs = append(*errs, RowError{Row: rec.Row, Field: column, Message: err.Error()})
	}
	return d
}

func intField(rec Record, column string, errs *[]RowError) int {
	n, err := ParseQuantity(rec.get(column))
	if err != nil {
		*errs = append(*errs, RowError{Row: rec.Row, Field: column, Message: err.Error()})
	}
	return n
}

var currencyTokens = []string{"₦", "NGN", "ngn", "N$", "$"}

// ParseMoney accepts thousands separators, currency symbols and accounting negatives.
// An empty cell is zero.
func ParseMoney(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(s)
	if clean == "" || clean == "-" {
		return decimal.Zero, nil
	}
	negative := strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")")
	clean = strings.Trim(clean, "()")
	for _, tok := range currencyTokens {
		clean = strings.ReplaceAll(clean, tok, "")
	}
	clean = strings.TrimPrefix(clean, "N")
	clean = strings.NewReplacer(",", "", " ", "", "\u00a0", "").Replace(clean)

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not an amount", s)
	}
	if negative {
		d = d.Neg()
	}
	return d.Round(2), nil
}

// ParseQuantity accepts whole numbers, tolerating separators and a zero fraction such as "12.0"
func ParseQuantity(s string) (int, error) {
	clean := strings.NewReplacer(",", "", " ", "").Replace(strings.TrimSpace(s))
	if clean == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(clean); err == nil {
		return n, nil
	}
	d, err := decimal.NewFromString(clean)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int(d.IntPart()), nil
}

// ParseBool reads yes/no style flags; empty yields def
func ParseBool(s string, def bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "1", "true", "yes", "y", "active", "on":
		return true, nil
	case "0", "false", "no", "n", "inactive", "off":
		return false, nil
	}
	return def, fmt.Errorf("%q is not yes or no", s)
}
