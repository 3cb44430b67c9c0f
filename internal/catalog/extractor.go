package catalog

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

const (
	blockSelector       = "div.courseblock.main"
	subsequenceSelector = "div.courseblock.subsequence"
	titleSelector       = "p.courseblocktitle"
	descSelector        = "p.courseblockdesc"
)

// Contribution is the set of index words one course block attributes to a course.
type Contribution struct {
	CourseID int
	Code     string
	Words    []string
}

// Extractor turns catalog pages into index contributions. It keeps no state
// between pages.
type Extractor struct {
	courses CourseMap
	logger  *logrus.Entry
}

// NewExtractor creates an extractor that keeps only codes present in courses
func NewExtractor(courses CourseMap, logger *logrus.Entry) *Extractor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Extractor{
		courses: courses,
		logger:  logger.WithField("component", "extractor"),
	}
}

// Extract walks every course block of doc in document order.
func (e *Extractor) Extract(doc *goquery.Document) []Contribution {
	var contributions []Contribution
	doc.Find(blockSelector).Each(func(_ int, block *goquery.Selection) {
		contributions = append(contributions, e.extractBlock(block)...)
	})
	return contributions
}

func (e *Extractor) extractBlock(block *goquery.Selection) []Contribution {
	title, ok := childText(block, titleSelector)
	if !ok {
		return nil
	}
	description, _ := childText(block, descSelector)

	var out []Contribution

	// 1. Sequence parts share the parent description
	for _, sub := range sequenceBlocks(block) {
		subTitle, ok := childText(sub, titleSelector)
		if !ok {
			continue
		}
		combined := description
		if subDesc, ok := childText(sub, descSelector); ok && subDesc != "" {
			combined = description + " " + subDesc
		}
		code, ok := ResolveCode(subTitle)
		if !ok {
			continue
		}
		if c, ok := e.contribute(code, subTitle, combined); ok {
			out = append(out, c)
		}
	}

	// 2. Primary code
	primary, hasPrimary := ResolveCode(title)
	if hasPrimary {
		if c, ok := e.contribute(primary, title, description); ok {
			out = append(out, c)
		}
	}

	// 3. Cross-listings reuse the full title and description
	fragments := strings.Split(title, "/")
	for _, fragment := range fragments[1:] {
		code, ok := resolveCrossListed(fragment, Department(primary))
		if !ok {
			continue
		}
		if c, ok := e.contribute(code, title, description); ok {
			out = append(out, c)
		}
	}

	return out
}

func (e *Extractor) contribute(code, title, description string) (Contribution, bool) {
	id, ok := e.courses.Lookup(code)
	if !ok {
		e.logger.WithField("code", code).Debug("Dropping unmapped course code")
		return Contribution{}, false
	}

	words, err := Words(stripCodes(title) + " " + description)
	if err != nil {
		e.logger.WithError(err).WithField("code", code).Warn("Skipping course block")
		return Contribution{}, false
	}

	return Contribution{CourseID: id, Code: code, Words: words}, true
}

// sequenceBlocks returns the sequence parts of a course block: nested
// subsequence blocks first, then the run of subsequence siblings that
// directly follows the block.
func sequenceBlocks(block *goquery.Selection) []*goquery.Selection {
	var subs []*goquery.Selection
	block.ChildrenFiltered(subsequenceSelector).Each(func(_ int, s *goquery.Selection) {
		subs = append(subs, s)
	})

	if len(block.Nodes) == 0 {
		return subs
	}
	for n := block.Nodes[0].NextSibling; n != nil; n = n.NextSibling {
		switch {
		case n.Type == html.TextNode && strings.TrimSpace(n.Data) == "":
			continue
		case n.Type == html.CommentNode:
			continue
		case n.Type == html.ElementNode && isSubsequence(n):
			subs = append(subs, goquery.NewDocumentFromNode(n).Selection)
			continue
		}
		break
	}
	return subs
}

func isSubsequence(n *html.Node) bool {
	if n.Data != "div" {
		return false
	}
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		var block, sub bool
		for _, class := range strings.Fields(attr.Val) {
			switch class {
			case "courseblock":
				block = true
			case "subsequence":
				sub = true
			}
		}
		return block && sub
	}
	return false
}

// childText returns the text of the first descendant of s matching selector,
// ignoring matches that belong to a nested subsequence block.
func childText(s *goquery.Selection, selector string) (string, bool) {
	child := s.Find(selector).FilterFunction(func(_ int, m *goquery.Selection) bool {
		return m.ParentsUntilSelection(s).Filter(subsequenceSelector).Length() == 0
	}).First()
	if child.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(child.Text()), true
}
