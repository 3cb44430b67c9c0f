package query_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/course-search/backend/internal/index"
	"github.com/course-search/backend/internal/metrics"
	"github.com/course-search/backend/internal/query"
	"github.com/course-search/backend/internal/storage"
)

func newTestExecutor(t *testing.T) (*query.Executor, *metrics.Metrics) {
	t.Helper()
	ctx := context.Background()

	s, err := storage.Open(filepath.Join(t.TempDir(), "courses.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.EnsureSchema(ctx))

	cat, err := storage.LoadCatalogFile(filepath.Join("..", "storage", "testdata", "catalog.yaml"))
	require.NoError(t, err)
	require.NoError(t, s.ImportCatalog(ctx, cat))

	idx := index.New()
	idx.MergeAll([]string{"introduction", "computer", "systems"}, 1)
	idx.MergeAll([]string{"computer", "systems", "programming"}, 2)
	idx.MergeAll([]string{"calculus"}, 3)
	_, err = s.LoadIndex(ctx, idx)
	require.NoError(t, err)

	schema, err := s.Schema(ctx)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	m := metrics.New(prometheus.NewRegistry())
	return query.NewExecutor(s.DB, schema, logrus.NewEntry(logger), m), m
}

func TestRun_TermsAreConjunctive(t *testing.T) {
	e, _ := newTestExecutor(t)

	res, err := e.Run(context.Background(), &query.Request{Terms: []string{"computer", "systems"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"dept", "course_num", "title"}, res.Columns)
	assert.Equal(t, [][]any{
		{"CMSC", "15400", "Introduction to Computer Systems"},
		{"CMSC", "25400", "Computer Systems Programming"},
	}, res.Rows)

	res, err = e.Run(context.Background(), &query.Request{Terms: []string{"computer", "calculus"}})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestRun_DeptAndTerms(t *testing.T) {
	e, _ := newTestExecutor(t)

	res, err := e.Run(context.Background(), &query.Request{
		Terms: []string{"Calculus"},
		Dept:  strPtr("MATH"),
	})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"MATH", "15100", "Calculus I"}}, res.Rows)
}

func TestRun_SectionFilters(t *testing.T) {
	e, _ := newTestExecutor(t)

	res, err := e.Run(context.Background(), &query.Request{
		Terms: []string{"systems"},
		Day:   []string{"MWF"},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []any{
		"CMSC", "15400", "Introduction to Computer Systems",
		"01", "MWF", int64(930), int64(1020), int64(40),
	}, res.Rows[0])
}

func TestRun_WalkingTime(t *testing.T) {
	e, _ := newTestExecutor(t)

	res, err := e.Run(context.Background(), &query.Request{
		BuildingCode: strPtr("JCL"),
		WalkingTime:  intPtr(5),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"dept", "course_num", "title", "section_num", "day", "time_start", "time_end",
		"enrollment", "building_code", "walking_time",
	}, res.Columns)
	// the BSLC section is six minutes away
	require.Len(t, res.Rows, 2)
	assert.Equal(t, []any{"CMSC", "15400", "RY", int64(4)},
		[]any{res.Rows[0][0], res.Rows[0][1], res.Rows[0][8], res.Rows[0][9]})
	assert.Equal(t, []any{"MATH", "15100", "RY", int64(4)},
		[]any{res.Rows[1][0], res.Rows[1][1], res.Rows[1][8], res.Rows[1][9]})
}

func TestRun_EmptyAndInvalid(t *testing.T) {
	e, m := newTestExecutor(t)

	res, err := e.Run(context.Background(), &query.Request{})
	require.NoError(t, err)
	assert.Empty(t, res.Columns)
	assert.Empty(t, res.Rows)

	_, err = e.Run(context.Background(), &query.Request{Enrollment: []int{30, 10}})
	assert.ErrorIs(t, err, query.ErrInvalidInput)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues(metrics.OutcomeEmpty)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues(metrics.OutcomeInvalid)))
	assert.Zero(t, testutil.ToFloat64(m.QueriesTotal.WithLabelValues(metrics.OutcomeOK)))
}
