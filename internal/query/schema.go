package query

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
)

// Tables the compiler knows how to join.
const (
	TableCourses         = "courses"
	TableSections        = "sections"
	TableMeetingPatterns = "meeting_patterns"
	TableCatalogIndex    = "catalog_index"
	TableGPS             = "gps"
)

// Tables lists every table Introspect reads at startup.
var Tables = []string{TableCourses, TableSections, TableMeetingPatterns, TableCatalogIndex, TableGPS}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Schema describes the column names of each table. Join columns are derived
// from it rather than hard-coded.
type Schema map[string][]string

// Columns returns the columns of table, in declaration order.
func (s Schema) Columns(table string) []string {
	return s[table]
}

// JoinColumn returns the single column name shared by tables a and b.
// Zero or several shared columns yield ErrUnresolvedJoin.
func (s Schema) JoinColumn(a, b string) (string, error) {
	left, ok := s[a]
	if !ok {
		return "", fmt.Errorf("%w: unknown table %q", ErrUnresolvedJoin, a)
	}
	right, ok := s[b]
	if !ok {
		return "", fmt.Errorf("%w: unknown table %q", ErrUnresolvedJoin, b)
	}

	inLeft := make(map[string]struct{}, len(left))
	for _, col := range left {
		inLeft[col] = struct{}{}
	}
	var shared []string
	for _, col := range right {
		if _, ok := inLeft[col]; ok {
			shared = append(shared, col)
		}
	}

	if len(shared) != 1 {
		sort.Strings(shared)
		return "", fmt.Errorf("%w: %s and %s share %d columns %v", ErrUnresolvedJoin, a, b, len(shared), shared)
	}
	return shared[0], nil
}

// Introspect reads the column names of tables from a SQLite database.
func Introspect(ctx context.Context, db *sql.DB, tables ...string) (Schema, error) {
	schema := make(Schema, len(tables))
	for _, table := range tables {
		if !identPattern.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
		cols, err := tableColumns(ctx, db, table)
		if err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			return nil, fmt.Errorf("table %q does not exist", table)
		}
		schema[table] = cols
	}
	return schema, nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	return cols, nil
}
