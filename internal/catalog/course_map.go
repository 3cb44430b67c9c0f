package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// CourseMap maps canonical course codes ("CMSC 12100") to course identifiers.
// It is loaded once before a crawl and never mutated by it.
type CourseMap map[string]int

// Lookup returns the identifier for code, if the code is part of the dataset.
func (m CourseMap) Lookup(code string) (int, bool) {
	id, ok := m[code]
	return id, ok
}

// LoadCourseMap decodes a JSON object of code -> identifier.
func LoadCourseMap(r io.Reader) (CourseMap, error) {
	var m CourseMap
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode course map: %w", err)
	}
	if m == nil {
		m = CourseMap{}
	}
	return m, nil
}

// LoadCourseMapFile reads a course map from disk.
func LoadCourseMapFile(path string) (CourseMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open course map: %w", err)
	}
	defer f.Close()
	return LoadCourseMap(f)
}
