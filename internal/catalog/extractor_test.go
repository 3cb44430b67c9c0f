package catalog_test

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/course-search/backend/internal/catalog"
)

func newTestExtractor(courses catalog.CourseMap) *catalog.Extractor {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return catalog.NewExtractor(courses, logrus.NewEntry(logger))
}

func parse(t *testing.T, page string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func byCourse(contributions []catalog.Contribution) map[int][]string {
	out := make(map[int][]string)
	for _, c := range contributions {
		out[c.CourseID] = append(out[c.CourseID], c.Words...)
	}
	return out
}

func TestExtract_SimpleBlock(t *testing.T) {
	doc := parse(t, `<html><body>
<div class="courseblock main">
  <p class="courseblocktitle">CMSC&#160;12100. Computer Science with Applications I. 100 Units.</p>
  <p class="courseblockdesc">An introduction to programming.</p>
</div>
</body></html>`)

	ex := newTestExtractor(catalog.CourseMap{"CMSC 12100": 7})
	contributions := ex.Extract(doc)

	require.Len(t, contributions, 1)
	assert.Equal(t, 7, contributions[0].CourseID)
	assert.Equal(t, "CMSC 12100", contributions[0].Code)
	assert.Equal(t, []string{"computer", "science", "applications", "introduction", "programming"}, contributions[0].Words)
	assert.NotContains(t, contributions[0].Words, "units")
	assert.NotContains(t, contributions[0].Words, "cmsc")
}

func TestExtract_CrossListed(t *testing.T) {
	doc := parse(t, `<div class="courseblock main">
  <p class="courseblocktitle">CMSC 15400/25400 Intro</p>
  <p class="courseblockdesc">fun</p>
</div>`)

	ex := newTestExtractor(catalog.CourseMap{"CMSC 15400": 1, "CMSC 25400": 2})
	got := byCourse(ex.Extract(doc))

	assert.Equal(t, map[int][]string{
		1: {"intro", "fun"},
		2: {"intro", "fun"},
	}, got)
}

func TestExtract_CrossListedAcrossDepartments(t *testing.T) {
	doc := parse(t, `<div class="courseblock main">
  <p class="courseblocktitle">ECON 20000/MATH 20000. Game Theory</p>
</div>`)

	ex := newTestExtractor(catalog.CourseMap{"ECON 20000": 10, "MATH 20000": 11})
	got := byCourse(ex.Extract(doc))

	assert.Equal(t, []string{"game", "theory"}, got[10])
	assert.Equal(t, []string{"game", "theory"}, got[11])
}

func TestExtract_UnmappedCodesDropped(t *testing.T) {
	doc := parse(t, `<div class="courseblock main">
  <p class="courseblocktitle">PHYS 13100/CMSC 12100. Mechanics</p>
  <p class="courseblockdesc">Forces.</p>
</div>`)

	ex := newTestExtractor(catalog.CourseMap{"CMSC 12100": 3})
	contributions := ex.Extract(doc)

	require.Len(t, contributions, 1)
	assert.Equal(t, 3, contributions[0].CourseID)
	assert.Equal(t, []string{"mechanics", "forces"}, contributions[0].Words)
}

func TestExtract_SiblingSequence(t *testing.T) {
	doc := parse(t, `<body>
<div class="courseblock main">
  <p class="courseblocktitle">CMSC 12100-12200. Computer Science with Applications I-II.</p>
  <p class="courseblockdesc">Shared overview.</p>
</div>
<div class="courseblock subsequence">
  <p class="courseblocktitle">CMSC 12100. Applications I.</p>
  <p class="courseblockdesc">Python basics.</p>
</div>
<!-- part two -->
<div class="courseblock subsequence">
  <p class="courseblocktitle">CMSC 12200. Applications II.</p>
</div>
<div class="courseblock main">
  <p class="courseblocktitle">CMSC 15100. Introduction to Computer Science I.</p>
</div>
</body>`)

	ex := newTestExtractor(catalog.CourseMap{"CMSC 12100": 1, "CMSC 12200": 2, "CMSC 15100": 3})
	contributions := ex.Extract(doc)

	require.Len(t, contributions, 4)
	// sequence parts come before the primary block
	assert.Equal(t, 1, contributions[0].CourseID)
	assert.Equal(t, []string{"applications", "shared", "overview", "python", "basics"}, contributions[0].Words)
	assert.Equal(t, 2, contributions[1].CourseID)
	assert.Equal(t, []string{"applications", "shared", "overview"}, contributions[1].Words)
	assert.Equal(t, 1, contributions[2].CourseID)
	assert.Equal(t, []string{"computer", "science", "applications", "i-ii", "shared", "overview"}, contributions[2].Words)
	assert.Equal(t, 3, contributions[3].CourseID)
}

func TestExtract_NestedSequence(t *testing.T) {
	doc := parse(t, `<div class="courseblock main">
  <p class="courseblocktitle">HUMA 11000-11100. Readings in World Literature</p>
  <p class="courseblockdesc">Epic poetry.</p>
  <div class="courseblock subsequence">
    <p class="courseblocktitle">HUMA 11100. Readings II</p>
    <p class="courseblockdesc">Drama.</p>
  </div>
</div>`)

	ex := newTestExtractor(catalog.CourseMap{"HUMA 11100": 20})
	contributions := ex.Extract(doc)

	require.Len(t, contributions, 1)
	assert.Equal(t, 20, contributions[0].CourseID)
	assert.Equal(t, []string{"readings", "epic", "poetry", "drama"}, contributions[0].Words)
}

func TestExtract_WrappedTitleAndDescription(t *testing.T) {
	doc := parse(t, `<div class="courseblock main">
  <div class="header"><p class="courseblocktitle">PHYS 13100. Mechanics</p></div>
  <div class="body"><p class="courseblockdesc">Newtonian motion.</p></div>
</div>`)

	ex := newTestExtractor(catalog.CourseMap{"PHYS 13100": 5})
	contributions := ex.Extract(doc)

	require.Len(t, contributions, 1)
	assert.Equal(t, []string{"mechanics", "newtonian", "motion"}, contributions[0].Words)
}

func TestExtract_NestedDescriptionNotTakenByParent(t *testing.T) {
	doc := parse(t, `<div class="courseblock main">
  <p class="courseblocktitle">HUMA 11000-11100. Readings in World Literature</p>
  <div class="courseblock subsequence">
    <p class="courseblocktitle">HUMA 11100. Readings II</p>
    <p class="courseblockdesc">Drama.</p>
  </div>
</div>`)

	ex := newTestExtractor(catalog.CourseMap{"HUMA 11000": 19, "HUMA 11100": 20})
	got := byCourse(ex.Extract(doc))

	assert.Equal(t, []string{"readings", "world", "literature"}, got[19])
	assert.Equal(t, []string{"readings", "drama"}, got[20])
}

func TestExtract_BlockWithoutTitleSkipped(t *testing.T) {
	doc := parse(t, `<div class="courseblock main"><p class="courseblockdesc">CMSC 12100 orphan</p></div>`)
	ex := newTestExtractor(catalog.CourseMap{"CMSC 12100": 1})
	assert.Empty(t, ex.Extract(doc))
}

func TestLoadCourseMap(t *testing.T) {
	m, err := catalog.LoadCourseMap(strings.NewReader(`{"CMSC 12100": 1, "MATH 15300": 42}`))
	require.NoError(t, err)

	id, ok := m.Lookup("MATH 15300")
	assert.True(t, ok)
	assert.Equal(t, 42, id)

	_, ok = m.Lookup("PHYS 13100")
	assert.False(t, ok)

	_, err = catalog.LoadCourseMap(strings.NewReader(`[1, 2]`))
	assert.Error(t, err)
}
