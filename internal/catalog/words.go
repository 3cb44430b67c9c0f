package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrInvalidInput is returned when text handed to the tokenizer is not valid UTF-8
var ErrInvalidInput = errors.New("invalid input")

// wordPattern matches a word starting with an ASCII letter that is not
// preceded by a letter, digit or underscore. Letters may be any script.
var wordPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])([a-z][\p{L}\p{N}_-]*)`)

// stopWords are never indexed
var stopWords = map[string]struct{}{
	"a": {}, "also": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "course": {}, "for": {}, "from": {},
	"how": {}, "i": {}, "ii": {}, "iii": {}, "in": {}, "include": {},
	"is": {}, "not": {}, "of": {}, "on": {}, "or": {}, "s": {},
	"sequence": {}, "so": {}, "social": {}, "students": {}, "such": {},
	"that": {}, "the": {}, "their": {}, "this": {}, "through": {}, "to": {},
	"topics": {}, "units": {}, "we": {}, "were": {}, "which": {}, "will": {},
	"with": {}, "yet": {},
}

// Words normalizes free text into the distinct index words it contains,
// in order of first occurrence.
func Words(text string) ([]string, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("tokenizing text: %w", ErrInvalidInput)
	}

	matches := wordPattern.FindAllStringSubmatch(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(matches))
	words := make([]string, 0, len(matches))
	for _, m := range matches {
		word := strings.TrimRight(m[1], "-")
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		words = append(words, word)
	}
	return words, nil
}
