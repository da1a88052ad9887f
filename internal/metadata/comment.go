package metadata

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Marker is the literal token that identifies a metadata comment.
const Marker = "@codetwin"

// Style is the comment syntax used when rendering a record.
type Style struct {
	Open  string
	Close string
}

var (
	StyleSlash = Style{Open: "//"}
	StyleHash  = Style{Open: "#"}
	StyleBlock = Style{Open: "/*", Close: "*/"}
	StyleHTML  = Style{Open: "<!--", Close: "-->"}
)

// StyleFor picks the comment style for a language tag.
func StyleFor(lang string) Style {
	switch strings.ToLower(lang) {
	case "python", "py", "ruby", "rb", "shell", "sh", "bash", "yaml", "toml":
		return StyleHash
	case "html", "xml", "markdown", "md", "vue", "svelte":
		return StyleHTML
	case "css":
		return StyleBlock
	default:
		return StyleSlash
	}
}

var (
	// markerLine matches any comment line carrying the marker, well-formed or not.
	markerLine = regexp.MustCompile(`^\s*(//|#|/\*|<!--)\s*` + regexp.QuoteMeta(Marker) + `(\s|\*/|-->|$)`)

	payloadPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(\s*)(//|#)\s*` + regexp.QuoteMeta(Marker) + `\s+(\{.*\})\s*$`),
		regexp.MustCompile(`^(\s*)(/\*)\s*` + regexp.QuoteMeta(Marker) + `\s+(\{.*\})\s*(\*/)\s*$`),
		regexp.MustCompile(`^(\s*)(<!--)\s*` + regexp.QuoteMeta(Marker) + `\s+(\{.*\})\s*(-->)\s*$`),
	}
)

// Entry is one well-formed metadata comment found in a text.
type Entry struct {
	Record Record
	Line   int // zero-based line number
	Start  int // byte offset of the line start
	End    int // byte offset of the line end, excluding the newline
	Indent string
	Style  Style
}

type line struct {
	text  string
	start int
	end   int // excluding newline
	next  int // start of the following line
}

func splitLines(text string) []line {
	var lines []line
	start := 0
	for start < len(text) {
		i := strings.IndexByte(text[start:], '\n')
		if i < 0 {
			lines = append(lines, line{text: text[start:], start: start, end: len(text), next: len(text)})
			break
		}
		end := start + i
		lines = append(lines, line{text: text[start:end], start: start, end: end, next: end + 1})
		start = end + 1
	}
	return lines
}

func isMarkerLine(s string) bool {
	return markerLine.MatchString(s)
}

// parseLine decodes a metadata comment line. Lines without the marker or
// with a malformed payload yield ok == false.
func parseLine(s string) (Entry, bool) {
	for _, re := range payloadPatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(m[3]), &rec); err != nil {
			return Entry{}, false
		}
		e := Entry{Record: rec.Normalized(), Indent: m[1], Style: Style{Open: m[2]}}
		if len(m) > 4 {
			e.Style.Close = m[4]
		}
		return e, true
	}
	return Entry{}, false
}

// Render formats a record as a single comment line without a newline.
func Render(r Record, style Style, indent string) (string, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(indent)
	sb.WriteString(style.Open)
	sb.WriteString(" ")
	sb.WriteString(Marker)
	sb.WriteString(" ")
	sb.Write(payload)
	if style.Close != "" {
		sb.WriteString(" ")
		sb.WriteString(style.Close)
	}
	return sb.String(), nil
}

// Entries returns every well-formed metadata comment in document order,
// without inheritance resolution or duplicate filtering.
func Entries(text string) []Entry {
	var entries []Entry
	for i, l := range splitLines(text) {
		if !isMarkerLine(l.text) {
			continue
		}
		e, ok := parseLine(l.text)
		if !ok {
			continue
		}
		e.Line = i
		e.Start = l.start
		e.End = l.end
		entries = append(entries, e)
	}
	return entries
}

// Span is a half-open byte range.
type Span struct {
	Start int
	End   int
}

// CommentSpans returns the byte spans (newline included) of every line that
// carries the marker, well-formed or not.
func CommentSpans(text string) []Span {
	var spans []Span
	for _, l := range splitLines(text) {
		if isMarkerLine(l.text) {
			spans = append(spans, Span{Start: l.start, End: l.next})
		}
	}
	return spans
}

// RemoveAll strips every metadata comment line, yielding clean source.
func RemoveAll(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, l := range splitLines(text) {
		if isMarkerLine(l.text) {
			continue
		}
		sb.WriteString(text[l.start:l.next])
	}
	return sb.String()
}
