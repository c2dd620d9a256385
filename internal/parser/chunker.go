package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roeisharon/MedAI/internal/models"
)

// separators is the split preference order: paragraph break, line break,
// sentence end, word boundary, and finally raw runes.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// pageSpan maps a byte range of the reconstructed document text to a page.
type pageSpan struct {
	start, end int
	page       int
}

// ChunkPages splits the document into overlapping chunks of at most maxLen
// runes with ~overlap runes shared between neighbours, attributing each chunk
// to a page and detecting a section heading where one plausibly starts the
// chunk.
//
// Chunking runs over the concatenated document text (pages joined with a
// paragraph break) rather than page by page, so related content that crosses
// a page boundary stays in one chunk.
func ChunkPages(pages []models.Page, maxLen, overlap int) []models.Chunk {
	if len(pages) == 0 {
		return nil
	}
	if maxLen <= 0 {
		maxLen = models.ChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxLen {
		overlap = maxLen / 2
	}

	var full strings.Builder
	spans := make([]pageSpan, 0, len(pages))
	for _, p := range pages {
		start := full.Len()
		full.WriteString(p.Text)
		full.WriteString("\n\n")
		spans = append(spans, pageSpan{start: start, end: full.Len(), page: p.Number})
	}
	fullText := full.String()

	pieces := splitText(fullText, separators, maxLen, overlap)

	chunks := make([]models.Chunk, 0, len(pieces))
	for i, text := range pieces {
		chunks = append(chunks, models.Chunk{
			Index:   i,
			Page:    locatePage(fullText, spans, text, pages[0].Number),
			Section: DetectSection(text),
			Text:    text,
		})
	}
	return chunks
}

// locatePage finds the chunk's page by searching for its first ~80 runes in
// the full document text and mapping the match offset to a page span. The
// first page is the safe default when the prefix cannot be located.
func locatePage(fullText string, spans []pageSpan, chunkText string, firstPage int) int {
	prefix := chunkText
	if r := []rune(prefix); len(r) > 80 {
		prefix = string(r[:80])
	}
	pos := strings.Index(fullText, prefix)
	if pos < 0 {
		return firstPage
	}
	for _, s := range spans {
		if pos >= s.start && pos < s.end {
			return s.page
		}
	}
	return spans[len(spans)-1].page
}

var titleCasePattern = regexp.MustCompile(`^[A-Z][a-z]`)

// DetectSection returns the chunk's section heading, or "" when its first
// line does not look like one. The heuristic is deliberately conservative: a
// wrong heading corrupts citation metadata shown to users, a missing one
// costs nothing.
func DetectSection(text string) string {
	var candidate string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			candidate = line
			break
		}
	}
	if candidate == "" {
		return ""
	}
	if utf8.RuneCountInString(candidate) > 60 {
		return ""
	}
	if strings.HasSuffix(candidate, ".") {
		return ""
	}
	if isAllUpper(candidate) || titleCasePattern.MatchString(candidate) {
		return candidate
	}
	return ""
}

// isAllUpper reports whether the string has at least one cased letter and no
// lowercase letters. Uncased scripts (Hebrew) never qualify on their own.
func isAllUpper(s string) bool {
	hasUpper := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}

// splitText recursively splits text using the first separator that occurs in
// it, then merges the resulting pieces back into chunks of at most maxLen
// runes, carrying ~overlap runes of trailing context into the next chunk.
// Separators stay attached to the preceding piece, so every produced chunk is
// a contiguous substring of the input (modulo edge trimming).
func splitText(text string, seps []string, maxLen, overlap int) []string {
	sep := seps[len(seps)-1]
	var rest []string
	for i, s := range seps {
		if s == "" {
			sep = ""
			rest = nil
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}

	var splits []string
	if sep == "" {
		splits = splitRunes(text, maxLen)
	} else {
		splits = strings.SplitAfter(text, sep)
	}

	var out []string
	var pending []string
	flush := func() {
		out = append(out, mergeSplits(pending, maxLen, overlap)...)
		pending = nil
	}
	for _, piece := range splits {
		if utf8.RuneCountInString(piece) < maxLen {
			pending = append(pending, piece)
			continue
		}
		flush()
		if len(rest) == 0 {
			out = append(out, splitRunes(piece, maxLen)...)
		} else {
			out = append(out, splitText(piece, rest, maxLen, overlap)...)
		}
	}
	flush()
	return out
}

// mergeSplits packs consecutive pieces into chunks of at most maxLen runes.
// When a chunk is emitted, leading pieces are dropped until at most overlap
// runes remain; those survivors seed the next chunk.
func mergeSplits(pieces []string, maxLen, overlap int) []string {
	var out []string
	var window []string
	total := 0

	emit := func() {
		if total == 0 {
			return
		}
		if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
			out = append(out, chunk)
		}
	}

	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)
		if total+n > maxLen && total > 0 {
			emit()
			for total > overlap || (total+n > maxLen && total > 0) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n
	}
	emit()
	return out
}

func splitRunes(text string, maxLen int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += maxLen {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}
