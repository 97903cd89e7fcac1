package chat

import (
	"sort"
	"strconv"
	"strings"

	"github.com/mwielandt/tern/model"
)

// Citation markers longer than this many digits are treated as literal
// text rather than held back waiting for a closing bracket.
const maxCitationDigits = 4

// Segment is one element of the processor's output: either a literal text
// fragment or a resolved citation marker.
type Segment struct {
	Text     string
	Citation *CitationInfo
}

// CitationProcessor recognizes inline [N] citation markers in streamed
// answer text. Markers can be split across token boundaries, so a viable
// partial marker at the end of the input is buffered until the next token
// or the end-of-stream flush.
//
// The number-to-document mapping is monotonic: once a citation number is
// bound to a document it keeps that binding even if a later cycle
// re-asserts the number.
type CitationProcessor struct {
	buffer  string
	mapping map[int]model.SearchDoc
	pairs   []model.CitationDocInfo
}

// NewCitationProcessor creates an empty processor. One instance serves
// exactly one turn.
func NewCitationProcessor() *CitationProcessor {
	return &CitationProcessor{
		mapping: make(map[int]model.SearchDoc),
	}
}

// ProcessToken consumes one answer-text token and returns the segments it
// releases: literal text in original order, with a citation segment
// emitted directly after each recognized marker. The marker text itself
// stays in the literal stream so the final answer retains it.
//
// A nil token signals end of input and flushes any held partial marker as
// literal text.
func (p *CitationProcessor) ProcessToken(token *string) []Segment {
	if token == nil {
		if p.buffer == "" {
			return nil
		}
		segment := Segment{Text: p.buffer}
		p.buffer = ""
		return []Segment{segment}
	}

	p.buffer += *token

	var segments []Segment
	var literal strings.Builder
	i := 0
	for i < len(p.buffer) {
		if p.buffer[i] != '[' {
			literal.WriteByte(p.buffer[i])
			i++
			continue
		}

		j := i + 1
		for j < len(p.buffer) && p.buffer[j] >= '0' && p.buffer[j] <= '9' {
			j++
		}
		digits := j - i - 1

		if j == len(p.buffer) && digits <= maxCitationDigits {
			// Possible marker cut off at the token boundary; hold it.
			break
		}

		if j < len(p.buffer) && p.buffer[j] == ']' && digits > 0 && digits <= maxCitationDigits {
			num, _ := strconv.Atoi(p.buffer[i+1 : j])
			if literal.Len() > 0 {
				segments = append(segments, Segment{Text: literal.String()})
				literal.Reset()
			}
			segments = append(segments, Segment{Text: p.buffer[i : j+1]})
			if doc, ok := p.mapping[num]; ok {
				segments = append(segments, Segment{Citation: &CitationInfo{
					CitationNumber: num,
					DocumentID:     doc.DocumentID,
					Link:           doc.Link,
				}})
			}
			i = j + 1
			continue
		}

		literal.WriteByte('[')
		i++
	}

	if literal.Len() > 0 {
		segments = append(segments, Segment{Text: literal.String()})
	}
	p.buffer = p.buffer[i:]
	return segments
}

// UpdateCitationMapping extends the number-to-document mapping with
// results from a citeable tool. Already-bound numbers keep their first
// document. Every asserted pair is also recorded in arrival order for the
// final readout.
func (p *CitationProcessor) UpdateCitationMapping(toDoc map[int]model.SearchDoc) {
	nums := make([]int, 0, len(toDoc))
	for num := range toDoc {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	for _, num := range nums {
		doc := toDoc[num]
		if existing, ok := p.mapping[num]; ok {
			doc = existing
		} else {
			p.mapping[num] = doc
		}
		p.pairs = append(p.pairs, model.CitationDocInfo{
			CitationNumber: num,
			Doc:            doc,
		})
	}
}

// CitationToDoc returns every asserted citation pair in arrival order,
// including re-assertions of already-seen numbers. The caller owns
// deduplication.
func (p *CitationProcessor) CitationToDoc() []model.CitationDocInfo {
	return p.pairs
}
