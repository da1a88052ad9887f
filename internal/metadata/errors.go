package metadata

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidRecord marks a record that fails validation.
var ErrInvalidRecord = errors.New("invalid metadata record")

// ValidationError lists every problem found in one record.
type ValidationError struct {
	ID       string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidRecord, e.ID, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRecord
}

// Validate checks an outgoing record: non-empty id, finite coordinates,
// no duplicate set members and a non-blank extends target when present.
func Validate(r Record) error {
	var problems []string

	if strings.TrimSpace(r.ID) == "" {
		problems = append(problems, "id is empty")
	}
	if math.IsNaN(r.X) || math.IsInf(r.X, 0) {
		problems = append(problems, "x is not finite")
	}
	if math.IsNaN(r.Y) || math.IsInf(r.Y, 0) {
		problems = append(problems, "y is not finite")
	}
	for _, set := range []struct {
		name   string
		values []string
	}{
		{"tags", r.Tags},
		{"links", r.Links},
		{"anchors", r.Anchors},
		{"tests", r.Tests},
	} {
		if dup, ok := firstDuplicate(set.values); ok {
			problems = append(problems, fmt.Sprintf("duplicate %s entry %q", set.name, dup))
		}
	}
	if r.Extends != "" && strings.TrimSpace(r.Extends) == "" {
		problems = append(problems, "extends target is blank")
	}
	if r.Extends != "" && r.Extends == r.ID {
		problems = append(problems, "record extends itself")
	}

	if len(problems) > 0 {
		return &ValidationError{ID: r.ID, Problems: problems}
	}
	return nil
}

func firstDuplicate(values []string) (string, bool) {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return v, true
		}
		seen[v] = true
	}
	return "", false
}
