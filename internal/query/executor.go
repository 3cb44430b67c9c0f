package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/course-search/backend/internal/metrics"
)

// Result is the header and rows of a course query.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func emptyResult() *Result {
	return &Result{Columns: []string{}, Rows: [][]any{}}
}

// Executor compiles and runs filter requests against one database. The
// database is only read.
type Executor struct {
	db      *sql.DB
	schema  Schema
	logger  *logrus.Entry
	metrics *metrics.Metrics
}

// NewExecutor creates an executor for db, whose tables are described by schema
func NewExecutor(db *sql.DB, schema Schema, logger *logrus.Entry, m *metrics.Metrics) *Executor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Executor{
		db:      db,
		schema:  schema,
		logger:  logger.WithField("component", "query_executor"),
		metrics: m,
	}
}

// Run validates, compiles and executes req. An empty request returns an
// empty result without touching the database.
func (e *Executor) Run(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	defer func() {
		e.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}()

	stmt, err := Compile(e.schema, req)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			e.metrics.QueriesTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		} else {
			e.metrics.QueriesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		}
		return nil, err
	}
	if stmt == nil {
		e.metrics.QueriesTotal.WithLabelValues(metrics.OutcomeEmpty).Inc()
		return emptyResult(), nil
	}

	if stmt.UsesDistance {
		if err := RegisterDistance(); err != nil {
			e.metrics.QueriesTotal.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, err
		}
	}

	e.logger.WithFields(logrus.Fields{
		"filters": stmt.Filters,
		"sql":     stmt.SQL,
		"args":    stmt.Args,
	}).Debug("Executing course query")

	rows, err := e.query(ctx, stmt)
	if err != nil {
		e.metrics.QueriesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	e.metrics.QueriesTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	return &Result{Columns: stmt.Columns, Rows: rows}, nil
}

func (e *Executor) query(ctx context.Context, stmt *Statement) ([][]any, error) {
	rows, err := e.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute course query: %w", err)
	}
	defer rows.Close()

	out := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(stmt.Columns))
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan course row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read course rows: %w", err)
	}
	return out, nil
}
