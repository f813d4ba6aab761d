// Package guardrail validates LLM-authored SQL before it may be
// executed. Validation is structural: after a cheap keyword pre-filter
// the text is parsed into an AST and checked for table, column, and
// row-limit policy. Every ambiguous case fails closed; a false
// rejection costs a fallback template, a false acceptance costs money
// or data.
package guardrail

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/OfirItzhaky/thelook-agent/pkg/schema"
)

// DefaultMaxRowLimit caps LIMIT clauses in validated SQL.
const DefaultMaxRowLimit = 1000

// DefaultPolicy returns the policy used by the planners: the known
// dataset tables, the default row cap, and the default keyword set.
// Columns are unrestricted; the table whitelist already bounds what
// they can touch.
func DefaultPolicy() Policy {
	return Policy{
		AllowedTables: schema.AllowedTables(),
		MaxRowLimit:   DefaultMaxRowLimit,
	}
}

// Reason identifies why a verdict rejected (or accepted) the SQL.
type Reason string

const (
	ReasonOK               Reason = "ok"
	ReasonEmptySQL         Reason = "empty_sql"
	ReasonForbiddenKeyword Reason = "forbidden_keyword"
	ReasonParseError       Reason = "parse_error"
	ReasonNotASelect       Reason = "not_a_select"
	ReasonUnknownTables    Reason = "unknown_tables"
	ReasonMissingLimit     Reason = "missing_limit"
	ReasonLimitExceedsMax  Reason = "limit_exceeds_max"
	ReasonForbiddenColumns Reason = "forbidden_columns"
)

// DefaultForbiddenKeywords are the statement keywords rejected anywhere
// in the raw text, before parsing.
var DefaultForbiddenKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create", "merge", "truncate",
}

// Policy configures a validation call.
type Policy struct {
	// AllowedTables is the set of bare table names the SQL may reference.
	AllowedTables map[string]struct{}
	// MaxRowLimit is the largest literal LIMIT value accepted.
	MaxRowLimit int
	// ForbiddenKeywords are matched case-insensitively on word
	// boundaries against the raw text. Nil means DefaultForbiddenKeywords.
	ForbiddenKeywords []string
	// AllowedColumns, when non-nil, restricts every column reference to
	// the given set of bare column names.
	AllowedColumns map[string]struct{}
}

// Verdict is the outcome of one validation call. On acceptance the
// extracted tables, limit, and columns are included as audit metadata;
// they do not bypass any later check.
type Verdict struct {
	Accepted bool
	Reason   Reason
	Detail   map[string]any

	Tables  []string
	Limit   int
	Columns []string
}

func reject(reason Reason, detail map[string]any) Verdict {
	return Verdict{Accepted: false, Reason: reason, Detail: detail}
}

// Validate checks sql against the policy. It never returns an error:
// anything that cannot be positively verified produces a rejecting
// verdict.
func Validate(sql string, pol Policy) Verdict {
	s := strings.TrimSpace(sql)
	if s == "" {
		return reject(ReasonEmptySQL, nil)
	}

	// Keyword pre-filter on the raw text. This fires even when the
	// keyword sits in a comment or string literal; for destructive
	// statement words that over-rejection is the point.
	if re := pol.keywordPattern(); re != nil {
		if m := re.FindString(s); m != "" {
			return reject(ReasonForbiddenKeyword, map[string]any{"keyword": strings.ToLower(m)})
		}
	}

	stmt, err := sqlparser.Parse(s)
	if err != nil {
		return reject(ReasonParseError, map[string]any{"error": err.Error()})
	}

	sel, ok := stmt.(sqlparser.SelectStatement)
	if !ok {
		return reject(ReasonNotASelect, map[string]any{"statement": fmt.Sprintf("%T", stmt)})
	}

	tables := collectTables(sel)
	var unknown []string
	for _, t := range tables {
		if _, ok := pol.AllowedTables[t]; !ok {
			unknown = append(unknown, t)
		}
	}
	if len(unknown) > 0 {
		return reject(ReasonUnknownTables, map[string]any{"tables": unknown})
	}

	limit, ok := literalRowLimit(sel)
	if !ok {
		// No LIMIT clause, or a non-literal expression we cannot bound.
		return reject(ReasonMissingLimit, nil)
	}
	if limit > pol.MaxRowLimit {
		return reject(ReasonLimitExceedsMax, map[string]any{
			"limit": limit,
			"max":   pol.MaxRowLimit,
		})
	}

	columns := collectColumns(sel)
	if pol.AllowedColumns != nil {
		var forbidden []string
		for _, c := range columns {
			if _, ok := pol.AllowedColumns[c]; !ok {
				forbidden = append(forbidden, c)
			}
		}
		if len(forbidden) > 0 {
			return reject(ReasonForbiddenColumns, map[string]any{"columns": forbidden})
		}
	}

	return Verdict{
		Accepted: true,
		Reason:   ReasonOK,
		Tables:   tables,
		Limit:    limit,
		Columns:  columns,
	}
}

// defaultKeywordRE is compiled once; the default keyword set never
// changes at runtime.
var defaultKeywordRE = compileKeywordPattern(DefaultForbiddenKeywords)

// keywordPattern returns the compiled pre-filter pattern for the
// policy, or nil when an explicitly empty keyword set disables it.
func (p Policy) keywordPattern() *regexp.Regexp {
	if p.ForbiddenKeywords == nil {
		return defaultKeywordRE
	}
	return compileKeywordPattern(p.ForbiddenKeywords)
}

func compileKeywordPattern(keywords []string) *regexp.Regexp {
	if len(keywords) == 0 {
		return nil
	}
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
}

// collectTables walks the AST and returns the bare names of every table
// referenced in a FROM clause or JOIN, in first-seen order. Qualified
// and backtick-quoted fully-qualified names are resolved to their last
// path segment, so `bigquery-public-data.thelook_ecommerce.orders`
// counts as "orders".
func collectTables(stmt sqlparser.SQLNode) []string {
	var tables []string
	seen := make(map[string]struct{})
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		ate, ok := node.(*sqlparser.AliasedTableExpr)
		if !ok {
			return true, nil
		}
		tn, ok := ate.Expr.(sqlparser.TableName)
		if !ok {
			// Derived table; Walk descends into the subquery on its own.
			return true, nil
		}
		name := bareTableName(tn)
		if name == "" {
			return true, nil
		}
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			tables = append(tables, name)
		}
		return true, nil
	}, stmt)
	return tables
}

func bareTableName(tn sqlparser.TableName) string {
	name := strings.ToLower(tn.Name.String())
	// A backtick-quoted project.dataset.table arrives as one identifier.
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// collectColumns walks the AST and returns every referenced bare column
// name, lowercased, in first-seen order.
func collectColumns(stmt sqlparser.SQLNode) []string {
	var cols []string
	seen := make(map[string]struct{})
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		col, ok := node.(*sqlparser.ColName)
		if !ok {
			return true, nil
		}
		name := col.Name.Lowered()
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			cols = append(cols, name)
		}
		return true, nil
	}, stmt)
	return cols
}

// literalRowLimit extracts the statement's LIMIT row count. It returns
// ok=false when the clause is absent or its row count is anything but
// an integer literal; a dynamic limit cannot be bounded and is treated
// as missing.
func literalRowLimit(stmt sqlparser.SelectStatement) (int, bool) {
	var limit *sqlparser.Limit
	switch s := stmt.(type) {
	case *sqlparser.Select:
		limit = s.Limit
	case *sqlparser.Union:
		limit = s.Limit
	case *sqlparser.ParenSelect:
		return literalRowLimit(s.Select)
	}
	if limit == nil || limit.Rowcount == nil {
		return 0, false
	}
	val, ok := limit.Rowcount.(*sqlparser.SQLVal)
	if !ok || val.Type != sqlparser.IntVal {
		return 0, false
	}
	n, err := strconv.Atoi(string(val.Val))
	if err != nil {
		return 0, false
	}
	return n, true
}
