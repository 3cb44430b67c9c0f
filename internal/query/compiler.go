// Package query compiles structured course filters into SQL over the course
// catalog tables and runs them.
package query

import (
	"fmt"
	"strings"
)

// predicateKind is the operator template a filter field compiles to.
type predicateKind int

const (
	membership predicateKind = iota
	equality
	inclusiveRange
	lowerBound
	upperBound
)

// field binds one request key to its column and operator.
type field struct {
	key    string
	column string
	kind   predicateKind
	values func(r *Request) []any
}

// walkingTimeExpr computes minutes from the section's building (a) to the
// requested building (b).
var walkingTimeExpr = fmt.Sprintf("%s(a.lon, a.lat, b.lon, b.lat)", DistanceFunc)

// fields are listed in emission order; args bind in the same order.
var fields = []field{
	{"terms", "catalog_index.word", membership, func(r *Request) []any {
		if r.Terms == nil {
			return nil
		}
		return toAny(r.normalizedTerms())
	}},
	{"dept", "courses.dept", equality, func(r *Request) []any {
		return optional(r.Dept)
	}},
	{"day", "meeting_patterns.day", membership, func(r *Request) []any {
		if r.Day == nil {
			return nil
		}
		return toAny(r.Day)
	}},
	{"enrollment", "sections.enrollment", inclusiveRange, func(r *Request) []any {
		if r.Enrollment == nil {
			return nil
		}
		return []any{r.Enrollment[0], r.Enrollment[1]}
	}},
	{"time_start", "meeting_patterns.time_start", lowerBound, func(r *Request) []any {
		return optional(r.TimeStart)
	}},
	{"time_end", "meeting_patterns.time_end", upperBound, func(r *Request) []any {
		return optional(r.TimeEnd)
	}},
	{"building_code", "b.building_code", equality, func(r *Request) []any {
		return optional(r.BuildingCode)
	}},
	{"walking_time", walkingTimeExpr, upperBound, func(r *Request) []any {
		return optional(r.WalkingTime)
	}},
}

// column is a selected expression and its header name.
type column struct {
	expr string
	name string
}

var (
	baseColumns = []column{
		{"courses.dept", "dept"},
		{"courses.course_num", "course_num"},
		{"courses.title", "title"},
	}
	sectionColumns = []column{
		{"sections.section_num", "section_num"},
		{"meeting_patterns.day", "day"},
		{"meeting_patterns.time_start", "time_start"},
		{"meeting_patterns.time_end", "time_end"},
		{"sections.enrollment", "enrollment"},
	}
	locationColumns = []column{
		{"a.building_code", "building_code"},
		{walkingTimeExpr + " AS walking_time", "walking_time"},
	}
)

// Statement is a compiled filter, ready to execute.
type Statement struct {
	SQL          string
	Args         []any
	Columns      []string
	Filters      []string
	UsesDistance bool
}

// Compile turns req into a single SELECT over the tables described by schema.
// An empty request compiles to a nil statement.
func Compile(schema Schema, req *Request) (*Statement, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Empty() {
		return nil, nil
	}

	withLocation := req.BuildingCode != nil
	withSections := withLocation || req.Day != nil || req.Enrollment != nil ||
		req.TimeStart != nil || req.TimeEnd != nil

	// 1. Columns
	columns := append([]column{}, baseColumns...)
	tables := []string{TableCourses}
	if withSections {
		columns = append(columns, sectionColumns...)
		tables = append(tables, TableSections, TableMeetingPatterns)
	}
	if withLocation {
		columns = append(columns, locationColumns...)
	}

	// 2. Joins
	from := []string{tables[0]}
	for i := 0; i+1 < len(tables); i++ {
		clause, err := joinClause(schema, tables[i], tables[i+1], tables[i+1])
		if err != nil {
			return nil, err
		}
		from = append(from, clause)
	}

	groupBy := ""
	if req.Terms != nil {
		clause, err := joinClause(schema, TableCourses, TableCatalogIndex, TableCatalogIndex)
		if err != nil {
			return nil, err
		}
		from = append(from, clause)

		idCol, _ := schema.JoinColumn(TableCourses, TableCatalogIndex)
		groupBy = fmt.Sprintf("%s.%s", TableCatalogIndex, idCol)
		if withSections {
			groupBy += ", sections.section_num"
		}
	}

	if withLocation {
		clause, err := joinClause(schema, TableSections, TableGPS, "a")
		if err != nil {
			return nil, err
		}
		from = append(from, clause, fmt.Sprintf("CROSS JOIN %s AS b", TableGPS))
	}

	// 3. Predicates
	var (
		where   []string
		args    []any
		filters []string
	)
	for _, f := range fields {
		values := f.values(req)
		if values == nil {
			continue
		}
		where = append(where, f.predicate(len(values)))
		args = append(args, values...)
		filters = append(filters, f.key)
	}

	// 4. Assemble
	var b strings.Builder
	exprs := make([]string, len(columns))
	names := make([]string, len(columns))
	for i, c := range columns {
		exprs[i] = c.expr
		names[i] = c.name
	}
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(exprs, ", "), strings.Join(from, " "))
	if len(where) > 0 {
		fmt.Fprintf(&b, " WHERE %s", strings.Join(where, " AND "))
	}
	if groupBy != "" {
		fmt.Fprintf(&b, " GROUP BY %s HAVING COUNT(DISTINCT %s.word) = ?", groupBy, TableCatalogIndex)
		args = append(args, len(req.normalizedTerms()))
	}
	b.WriteString(" ORDER BY courses.dept, courses.course_num")
	if withSections {
		b.WriteString(", sections.section_num")
	}

	return &Statement{
		SQL:          b.String(),
		Args:         args,
		Columns:      names,
		Filters:      filters,
		UsesDistance: withLocation,
	}, nil
}

// joinClause joins right (aliased as alias) to left on their shared column.
func joinClause(schema Schema, left, right, alias string) (string, error) {
	col, err := schema.JoinColumn(left, right)
	if err != nil {
		return "", err
	}
	target := right
	if alias != right {
		target = fmt.Sprintf("%s AS %s", right, alias)
	}
	return fmt.Sprintf("JOIN %s ON %s.%s = %s.%s", target, left, col, alias, col), nil
}

func (f field) predicate(n int) string {
	switch f.kind {
	case membership:
		if n == 0 {
			return "0 = 1"
		}
		return fmt.Sprintf("%s IN (%s)", f.column, placeholders(n))
	case inclusiveRange:
		return fmt.Sprintf("%s BETWEEN ? AND ?", f.column)
	case lowerBound:
		return fmt.Sprintf("%s >= ?", f.column)
	case upperBound:
		return fmt.Sprintf("%s <= ?", f.column)
	case equality:
		return fmt.Sprintf("%s = ?", f.column)
	default:
		panic(fmt.Sprintf("query: unknown predicate kind %d", f.kind))
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func optional[T any](v *T) []any {
	if v == nil {
		return nil
	}
	return []any{*v}
}
