package metadata

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed record.schema.json
var recordSchemaJSON string

var recordSchema = jsonschema.MustCompileString("codetwin-record.schema.json", recordSchemaJSON)

// Issue is a marker comment that cannot be read as a record.
type Issue struct {
	Line    int // zero-based
	ID      string
	Problem string
}

func (i Issue) String() string {
	if i.ID == "" {
		return fmt.Sprintf("line %d: %s", i.Line+1, i.Problem)
	}
	return fmt.Sprintf("line %d (%s): %s", i.Line+1, i.ID, i.Problem)
}

// Lint reports every marker comment that ReadAll would skip or misread:
// comments whose payload is missing or not JSON, and payloads that do not
// match the record schema.
func Lint(text string) []Issue {
	var issues []Issue
	for i, l := range splitLines(text) {
		if !isMarkerLine(l.text) {
			continue
		}
		payload, ok := rawPayload(l.text)
		if !ok {
			issues = append(issues, Issue{Line: i, Problem: "marker without a JSON payload"})
			continue
		}
		var doc any
		dec := json.NewDecoder(strings.NewReader(payload))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			issues = append(issues, Issue{Line: i, Problem: "invalid JSON: " + err.Error()})
			continue
		}
		id := ""
		if m, ok := doc.(map[string]any); ok {
			id, _ = m["id"].(string)
		}
		if err := recordSchema.Validate(doc); err != nil {
			for _, p := range schemaProblems(err) {
				issues = append(issues, Issue{Line: i, ID: id, Problem: p})
			}
		}
	}
	return issues
}

func rawPayload(s string) (string, bool) {
	for _, re := range payloadPatterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[3], true
		}
	}
	return "", false
}

// schemaProblems flattens a validation error to its leaf messages.
func schemaProblems(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}
