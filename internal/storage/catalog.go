package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the course, section and building data the crawler does not
// produce. It is loaded from a YAML seed file.
type Catalog struct {
	Courses         []Course         `yaml:"courses"`
	Sections        []Section        `yaml:"sections"`
	MeetingPatterns []MeetingPattern `yaml:"meeting_patterns"`
	Buildings       []Building       `yaml:"buildings"`
}

type Course struct {
	ID        int    `yaml:"id"`
	Dept      string `yaml:"dept"`
	CourseNum string `yaml:"course_num"`
	Title     string `yaml:"title"`
}

type Section struct {
	ID               int    `yaml:"id"`
	CourseID         int    `yaml:"course_id"`
	SectionNum       string `yaml:"section_num"`
	Enrollment       int    `yaml:"enrollment"`
	BuildingCode     string `yaml:"building_code"`
	MeetingPatternID int    `yaml:"meeting_pattern_id"`
}

type MeetingPattern struct {
	ID        int    `yaml:"id"`
	Day       string `yaml:"day"`
	TimeStart int    `yaml:"time_start"`
	TimeEnd   int    `yaml:"time_end"`
}

// Building is a row of the gps table.
type Building struct {
	Code string  `yaml:"code"`
	Lon  float64 `yaml:"lon"`
	Lat  float64 `yaml:"lat"`
}

// DecodeCatalog parses a YAML catalog seed.
func DecodeCatalog(r io.Reader) (*Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return &cat, nil
}

// LoadCatalogFile reads a YAML catalog seed from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return DecodeCatalog(f)
}

// ImportCatalog upserts every row of cat in one transaction.
func (s *Store) ImportCatalog(ctx context.Context, cat *Catalog) error {
	return s.InTx(ctx, func(tx *sql.Tx) error {
		for _, c := range cat.Courses {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO courses (course_id, dept, course_num, title) VALUES (?, ?, ?, ?)",
				c.ID, c.Dept, c.CourseNum, c.Title); err != nil {
				return fmt.Errorf("inserting course %d: %w", c.ID, err)
			}
		}
		for _, m := range cat.MeetingPatterns {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO meeting_patterns (meeting_pattern_id, day, time_start, time_end) VALUES (?, ?, ?, ?)",
				m.ID, m.Day, m.TimeStart, m.TimeEnd); err != nil {
				return fmt.Errorf("inserting meeting pattern %d: %w", m.ID, err)
			}
		}
		for _, sec := range cat.Sections {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO sections (section_id, course_id, section_num, enrollment, building_code, meeting_pattern_id) VALUES (?, ?, ?, ?, ?, ?)",
				sec.ID, sec.CourseID, sec.SectionNum, sec.Enrollment, sec.BuildingCode, sec.MeetingPatternID); err != nil {
				return fmt.Errorf("inserting section %d: %w", sec.ID, err)
			}
		}
		for _, b := range cat.Buildings {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO gps (building_code, lon, lat) VALUES (?, ?, ?)",
				b.Code, b.Lon, b.Lat); err != nil {
				return fmt.Errorf("inserting building %s: %w", b.Code, err)
			}
		}
		return nil
	})
}
