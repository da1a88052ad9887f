package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

const visualIDPrefix = "blk_"

// BuildStableID derives a block's visual id from its kind, trimmed snippet
// and logical start offset. The kind keeps nested blocks that share text and
// start (a statement and the expression it wraps) apart. The logical offset
// discounts metadata comment lines, so inserting a comment does not move the
// ids below it. Tree node identity is never part of the input.
func BuildStableID(kind Kind, snippet string, logicalStart uint32) string {
	fingerprint := strings.Join([]string{
		string(kind),
		strings.TrimSpace(snippet),
		strconv.FormatUint(uint64(logicalStart), 10),
	}, "\x00")

	sum := sha256.Sum256([]byte(fingerprint))
	return visualIDPrefix + hex.EncodeToString(sum[:8])
}

// offsetMapper converts physical byte offsets into logical ones by
// discounting ignored spans (metadata comment lines) that precede them.
type offsetMapper struct {
	spans []Range
}

func newOffsetMapper(ignore []Range) offsetMapper {
	spans := make([]Range, 0, len(ignore))
	for _, r := range ignore {
		if r.Len() > 0 {
			spans = append(spans, r)
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return offsetMapper{spans: spans}
}

func (m offsetMapper) logical(offset uint32) uint32 {
	var skipped uint32
	for _, s := range m.spans {
		if s.Start >= offset {
			break
		}
		if s.End <= offset {
			skipped += s.Len()
			continue
		}
		skipped += offset - s.Start
	}
	return offset - skipped
}
