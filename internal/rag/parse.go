package rag

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/roeisharon/MedAI/internal/models"
)

// The model is instructed to answer in <answer>/<citations> tags, but a
// generative model cannot be trusted to follow the format on every call.
// Parsing is therefore two-tier: trust the structured output first, then run
// a pipeline of repair stages over whatever came back. Each stage is
// idempotent: it does nothing when the prior stage already produced a clean
// result.
var (
	answerBlockPattern    = regexp.MustCompile(`(?s)<answer>(.*?)</answer>`)
	citationsBlockPattern = regexp.MustCompile(`(?s)<citations>(.*?)</citations>`)
	strayTagPattern       = regexp.MustCompile(`</?(answer|citations)>`)
	inlinePageHePattern   = regexp.MustCompile(`\s*\(עמוד\s*\d+\)`)
	inlinePageEnPattern   = regexp.MustCompile(`(?i)\s*\(page\s*\d+\)`)
	quotedPattern         = regexp.MustCompile(`"([^"]*)"`)
	wordPattern           = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// ParseResponse extracts the answer text and up to MaxCitations citations
// from a raw model response. contextChunks are the excerpts that were
// supplied to the model; they drive the inline-quote fallback when the model
// skipped the citations block. Parsing never fails: a malformed response
// degrades to the cleaned raw text with no citations.
func ParseResponse(raw string, contextChunks []models.RetrievedChunk) (string, []models.Citation) {
	var answer string
	if m := answerBlockPattern.FindStringSubmatch(raw); m != nil {
		answer = strings.TrimSpace(m[1])
	}

	citations := parseCitationsBlock(raw)

	// No answer tag: strip any tag-delimited spans so a stray citations
	// block never leaks into the displayed answer, then fall back to the
	// raw text.
	if answer == "" {
		clean := strings.TrimSpace(stripTagBlocks(raw))
		if clean == "" {
			clean = strings.TrimSpace(raw)
		}
		answer = clean
	}

	// Safety strip for unbalanced tags the block patterns missed.
	answer = strings.TrimSpace(strayTagPattern.ReplaceAllString(answer, ""))

	// The model sometimes writes "(page 3)" / "(עמוד 3)" inline despite the
	// instructions; citations belong in the citations block only.
	answer = strings.TrimSpace(inlinePageHePattern.ReplaceAllString(answer, ""))
	answer = strings.TrimSpace(inlinePageEnPattern.ReplaceAllString(answer, ""))

	if len(citations) == 0 && len(contextChunks) > 0 {
		answer, citations = recoverInlineCitations(answer, contextChunks)
	}

	return answer, citations
}

// stripTagBlocks removes complete <answer>...</answer> and
// <citations>...</citations> spans.
func stripTagBlocks(s string) string {
	s = answerBlockPattern.ReplaceAllString(s, "")
	return citationsBlockPattern.ReplaceAllString(s, "")
}

// parseCitationsBlock parses the citations block as a JSON array. Entries may
// be plain strings (quote only) or objects with text/page/section. Parse
// failures are swallowed; a missing citation list is not an error.
func parseCitationsBlock(raw string) []models.Citation {
	m := citationsBlockPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}

	var entries []any
	if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &entries); err != nil {
		return nil
	}

	var citations []models.Citation
	for _, entry := range entries {
		if len(citations) == models.MaxCitations {
			break
		}
		switch v := entry.(type) {
		case string:
			citations = append(citations, models.Citation{Text: v})
		case map[string]any:
			text, ok := v["text"].(string)
			if !ok {
				continue
			}
			citations = append(citations, models.Citation{
				Text:    text,
				Page:    asPage(v["page"]),
				Section: asString(v["section"]),
			})
		}
	}
	return citations
}

func asPage(v any) int {
	switch p := v.(type) {
	case float64:
		return int(p)
	case string:
		n, _ := strconv.Atoi(p)
		return n
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// recoverInlineCitations scans the answer for double-quoted substrings and
// matches each against the context chunks by distinct-word overlap. A quote
// sharing more than half its words with one chunk becomes a citation carrying
// that chunk's page and section, and is removed from the answer so it is not
// displayed twice.
func recoverInlineCitations(answer string, contextChunks []models.RetrievedChunk) (string, []models.Citation) {
	var citations []models.Citation

	matches := quotedPattern.FindAllStringSubmatch(answer, models.MaxCitations)
	for _, m := range matches {
		quote := m[1]
		quoteWords := wordSet(quote)
		if len(quoteWords) == 0 {
			continue
		}

		var best *models.RetrievedChunk
		bestOverlap := 0
		for i := range contextChunks {
			overlap := overlapCount(quoteWords, contextChunks[i].Text)
			if overlap > bestOverlap {
				bestOverlap = overlap
				best = &contextChunks[i]
			}
		}

		if best != nil && bestOverlap*2 > len(quoteWords) {
			citations = append(citations, models.Citation{
				Text:    quote,
				Page:    best.Page,
				Section: best.Section,
			})
			answer = strings.TrimSpace(strings.Replace(answer, `"`+quote+`"`, "", 1))
		}
	}
	return answer, citations
}

func wordSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range wordPattern.FindAllString(s, -1) {
		set[w] = struct{}{}
	}
	return set
}

func overlapCount(words map[string]struct{}, text string) int {
	chunkWords := wordSet(text)
	n := 0
	for w := range words {
		if _, ok := chunkWords[w]; ok {
			n++
		}
	}
	return n
}
