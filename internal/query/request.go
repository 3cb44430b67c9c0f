package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrInvalidInput marks a malformed filter request. Nothing is compiled or
	// executed for such a request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnresolvedJoin marks a pair of tables without exactly one shared column.
	ErrUnresolvedJoin = errors.New("unresolved join")
)

// Request is a structured course filter. A nil field is absent.
type Request struct {
	Terms        []string `json:"terms,omitempty"`
	Dept         *string  `json:"dept,omitempty"`
	Day          []string `json:"day,omitempty"`
	TimeStart    *int     `json:"time_start,omitempty"`
	TimeEnd      *int     `json:"time_end,omitempty"`
	Enrollment   []int    `json:"enrollment,omitempty"`
	BuildingCode *string  `json:"building_code,omitempty"`
	WalkingTime  *int     `json:"walking_time,omitempty"`
}

// DecodeRequest reads a JSON filter request. Unknown keys and values of the
// wrong type are rejected.
func DecodeRequest(r io.Reader) (*Request, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var req Request
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after request object", ErrInvalidInput)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Empty reports whether no filter is set.
func (r *Request) Empty() bool {
	return r == nil || (r.Terms == nil && r.Dept == nil && r.Day == nil &&
		r.TimeStart == nil && r.TimeEnd == nil && r.Enrollment == nil &&
		r.BuildingCode == nil && r.WalkingTime == nil)
}

// Validate checks the request against the filter contract.
func (r *Request) Validate() error {
	if r == nil {
		return nil
	}
	if r.Terms != nil && len(r.Terms) == 0 {
		return invalid("terms must not be empty")
	}
	if r.TimeStart != nil && *r.TimeStart < 0 {
		return invalid("time_start must be >= 0, got %d", *r.TimeStart)
	}
	if r.TimeEnd != nil && *r.TimeEnd >= 2400 {
		return invalid("time_end must be < 2400, got %d", *r.TimeEnd)
	}
	if r.Enrollment != nil {
		if len(r.Enrollment) != 2 {
			return invalid("enrollment must have exactly 2 values, got %d", len(r.Enrollment))
		}
		if r.Enrollment[0] > r.Enrollment[1] {
			return invalid("enrollment bounds must ascend, got [%d, %d]", r.Enrollment[0], r.Enrollment[1])
		}
	}
	if (r.BuildingCode == nil) != (r.WalkingTime == nil) {
		return invalid("building_code and walking_time must be given together")
	}
	return nil
}

// normalizedTerms lowercases and deduplicates terms so that the distinct-word
// count matches what the index can hold.
func (r *Request) normalizedTerms() []string {
	seen := make(map[string]struct{}, len(r.Terms))
	terms := make([]string, 0, len(r.Terms))
	for _, t := range r.Terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
