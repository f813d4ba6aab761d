// Package schema is the static catalog for the
// bigquery-public-data.thelook_ecommerce dataset.
//
// It centralizes table metadata (primary keys, allowed columns, join
// paths, date columns) so the planner and SQL generator can compose
// safe SQL without free-form introspection. The registry is built once
// at package init and never mutated; all lookups are O(1) map reads
// and safe for concurrent use.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Dataset is the fully qualified dataset every table lives in.
const Dataset = "bigquery-public-data.thelook_ecommerce"

var (
	// ErrUnknownTable is returned for a table name outside the fixed four.
	ErrUnknownTable = errors.New("unknown table")
	// ErrUnsupportedDimension is returned for a friendly dimension name
	// outside the dimension map.
	ErrUnsupportedDimension = errors.New("unsupported dimension")
	// ErrDisallowedColumns is returned when a metric-column check finds
	// columns outside a table's allowlist.
	ErrDisallowedColumns = errors.New("columns not allowed")
)

// Table describes one whitelisted table.
type Table struct {
	Name              string
	FQTN              string
	PrimaryKey        string
	Columns           map[string]struct{}
	DateColumns       []string
	DefaultDateColumn string // empty for static catalog tables
}

// HasColumn reports whether col is in the table's allowlist.
func (t Table) HasColumn(col string) bool {
	_, ok := t.Columns[col]
	return ok
}

// Join is one whitelisted join edge between two tables.
type Join struct {
	Left     string
	Right    string
	LeftKey  string
	RightKey string
}

var tables = map[string]Table{
	"orders": {
		Name:       "orders",
		FQTN:       Dataset + ".orders",
		PrimaryKey: "order_id",
		Columns: columnSet(
			"order_id", "user_id", "status", "created_at", "shipped_at",
			"delivered_at", "returned_at", "num_of_item",
		),
		DateColumns:       []string{"created_at", "delivered_at", "returned_at", "shipped_at"},
		DefaultDateColumn: "created_at",
	},
	"order_items": {
		Name:       "order_items",
		FQTN:       Dataset + ".order_items",
		PrimaryKey: "id",
		Columns: columnSet(
			"id", "order_id", "user_id", "product_id", "inventory_item_id",
			"status", "created_at", "shipped_at", "delivered_at",
			"returned_at", "sale_price",
		),
		DateColumns:       []string{"created_at", "shipped_at", "delivered_at", "returned_at"},
		DefaultDateColumn: "created_at",
	},
	"products": {
		Name:       "products",
		FQTN:       Dataset + ".products",
		PrimaryKey: "id",
		Columns: columnSet(
			"id", "name", "brand", "department", "category", "cost",
			"retail_price", "sku", "distribution_center_id",
		),
		// static catalog table, no date filtering
		DateColumns:       nil,
		DefaultDateColumn: "",
	},
	"users": {
		Name:       "users",
		FQTN:       Dataset + ".users",
		PrimaryKey: "id",
		Columns: columnSet(
			"id", "first_name", "last_name", "email", "age", "gender",
			"state", "city", "country", "street_address", "postal_code",
			"created_at",
		),
		DateColumns:       []string{"created_at"},
		DefaultDateColumn: "created_at",
	},
}

// joins is the fixed whitelist of join edges. Every join the SQL
// generator emits must appear here (checked symmetrically).
var joins = []Join{
	{Left: "orders", Right: "users", LeftKey: "user_id", RightKey: "id"},
	{Left: "order_items", Right: "orders", LeftKey: "order_id", RightKey: "order_id"},
	{Left: "order_items", Right: "users", LeftKey: "user_id", RightKey: "id"},
	{Left: "order_items", Right: "products", LeftKey: "product_id", RightKey: "id"},
}

// dimensions maps friendly grouping names to fully qualified columns.
var dimensions = map[string]string{
	"gender":       "users.gender",
	"country":      "users.country",
	"state":        "users.state",
	"city":         "users.city",
	"age":          "users.age",
	"brand":        "products.brand",
	"department":   "products.department",
	"category":     "products.category",
	"product_name": "products.name",
}

func columnSet(cols ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		s[c] = struct{}{}
	}
	return s
}

// Get returns the descriptor for a short table name.
func Get(name string) (Table, error) {
	t, ok := tables[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownTable, name, strings.Join(TableNames(), ", "))
	}
	return t, nil
}

// MustFQTN returns the fully qualified name for a short table name.
// It panics on an unknown name and exists for the fixed template
// builders whose table references are compile-time constants.
func MustFQTN(name string) string {
	t, err := Get(name)
	if err != nil {
		panic(err)
	}
	return t.FQTN
}

// TableNames returns the short names of all whitelisted tables, sorted.
func TableNames() []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllowedTables returns the table allowlist as a set, keyed by short
// name, for the guardrail validator.
func AllowedTables() map[string]struct{} {
	s := make(map[string]struct{}, len(tables))
	for name := range tables {
		s[name] = struct{}{}
	}
	return s
}

// DefaultDateColumn returns the table's default date column, or empty
// when the table has none (static catalog tables).
func DefaultDateColumn(table string) (string, error) {
	t, err := Get(table)
	if err != nil {
		return "", err
	}
	return t.DefaultDateColumn, nil
}

// ResolveDimension maps a friendly dimension name to its fully
// qualified column reference.
func ResolveDimension(dim string) (string, error) {
	col, ok := dimensions[dim]
	if !ok {
		return "", fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedDimension, dim, strings.Join(DimensionNames(), ", "))
	}
	return col, nil
}

// DimensionNames returns the friendly dimension names, sorted.
func DimensionNames() []string {
	names := make([]string, 0, len(dimensions))
	for name := range dimensions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Joins returns a copy of the whitelisted join edges.
func Joins() []Join {
	out := make([]Join, len(joins))
	copy(out, joins)
	return out
}

// JoinAllowed reports whether the given join edge is whitelisted,
// in either orientation.
func JoinAllowed(left, right, leftKey, rightKey string) bool {
	for _, j := range joins {
		if j.Left == left && j.Right == right && j.LeftKey == leftKey && j.RightKey == rightKey {
			return true
		}
		if j.Left == right && j.Right == left && j.LeftKey == rightKey && j.RightKey == leftKey {
			return true
		}
	}
	return false
}

// ValidateMetricColumns ensures every requested metric column exists on
// the table's allowlist, reporting all offenders at once.
func ValidateMetricColumns(table string, cols []string) error {
	t, err := Get(table)
	if err != nil {
		return err
	}
	var missing []string
	for _, c := range cols {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w on %s: %s", ErrDisallowedColumns, table, strings.Join(missing, ", "))
	}
	return nil
}

// PromptSummary serializes the registry into the plain-text form handed
// to the dynamic planner's LLM prompt: tables with their columns, the
// whitelisted join keys, and the standing query rules.
func PromptSummary() string {
	var sb strings.Builder
	sb.WriteString("You may ONLY use these tables and columns:\n\n")
	for _, name := range TableNames() {
		t := tables[name]
		cols := make([]string, 0, len(t.Columns))
		for c := range t.Columns {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		sb.WriteString("- " + name + ": " + strings.Join(cols, ", ") + "\n")
	}
	sb.WriteString("\nYou may ONLY join tables using these keys:\n")
	for _, j := range joins {
		sb.WriteString(fmt.Sprintf("- %s.%s = %s.%s\n", j.Left, j.LeftKey, j.Right, j.RightKey))
	}
	sb.WriteString("\nRevenue / sales must be computed from order_items.sale_price joined via the allowed joins.\n")
	sb.WriteString("Always include a LIMIT clause with a literal value (e.g. LIMIT 200).\n")
	return sb.String()
}
