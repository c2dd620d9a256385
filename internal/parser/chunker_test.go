package parser

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roeisharon/MedAI/internal/models"
)

func TestChunkPagesShortDocument(t *testing.T) {
	pages := []models.Page{
		{Number: 1, Text: "DOSAGE\nTake 1 tablet twice daily with water."},
	}
	chunks := ChunkPages(pages, 1200, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, "DOSAGE", chunks[0].Section)
	assert.Contains(t, chunks[0].Text, "Take 1 tablet twice daily")
}

func TestChunkPagesEmpty(t *testing.T) {
	assert.Nil(t, ChunkPages(nil, 1200, 200))
}

// syntheticPage builds a page of uniquely numbered sentences so chunk
// prefixes are unambiguous in the full document text.
func syntheticPage(number int, topic string, sentences int) models.Page {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&b, "Sentence %d about %s number %02d. ", number, topic, i)
	}
	return models.Page{Number: number, Text: strings.TrimSpace(b.String())}
}

func TestChunkPagesSplitsAndAttributesPages(t *testing.T) {
	pages := []models.Page{
		syntheticPage(1, "dosage", 30),
		syntheticPage(2, "storage", 30),
	}
	maxLen, overlap := 300, 50
	chunks := ChunkPages(pages, maxLen, overlap)
	require.Greater(t, len(chunks), 2)

	fullText := pages[0].Text + "\n\n" + pages[1].Text + "\n\n"
	prevPage := 0
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), maxLen, "chunk %d too long", i)
		// Every chunk is a contiguous slice of the document.
		assert.Contains(t, fullText, c.Text, "chunk %d is not contiguous", i)
		assert.GreaterOrEqual(t, c.Page, prevPage, "page numbers went backwards at chunk %d", i)
		prevPage = c.Page
	}
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 2, chunks[len(chunks)-1].Page)
}

func TestChunkPagesOverlapCarriesContext(t *testing.T) {
	pages := []models.Page{syntheticPage(1, "warnings", 40)}
	chunks := ChunkPages(pages, 300, 100)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		// The next chunk starts with trailing content of the previous one.
		head := chunks[i].Text
		if r := []rune(head); len(r) > 30 {
			head = string(r[:30])
		}
		assert.Contains(t, chunks[i-1].Text, head, "chunks %d and %d do not overlap", i-1, i)
	}
}

func TestChunkPagesCoversWholeDocument(t *testing.T) {
	pages := []models.Page{syntheticPage(1, "interactions", 40)}
	chunks := ChunkPages(pages, 300, 50)
	require.NotEmpty(t, chunks)

	// Every sentence of the source must survive into at least one chunk.
	joined := ""
	for _, c := range chunks {
		joined += c.Text + "\n"
	}
	for i := 0; i < 40; i++ {
		sentence := fmt.Sprintf("Sentence 1 about interactions number %02d.", i)
		assert.Contains(t, joined, sentence)
	}
}

func TestDetectSection(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"all caps heading", "DOSAGE\nTake 1 tablet daily.", "DOSAGE"},
		{"title case heading", "Side Effects\nMay cause drowsiness.", "Side Effects"},
		{"leading blank lines", "\n\nWARNINGS\ncontent", "WARNINGS"},
		{"sentence is not a heading", "take this with water.\nmore text", ""},
		{"trailing period disqualifies", "DOSAGE.\ncontent", ""},
		{"too long", strings.Repeat("A", 61) + "\ncontent", ""},
		{"uncased hebrew alone", "מינון\nתוכן", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectSection(tc.text))
		})
	}
}

func TestIsAllUpper(t *testing.T) {
	assert.True(t, isAllUpper("DOSAGE AND ADMINISTRATION"))
	assert.False(t, isAllUpper("Dosage"))
	assert.False(t, isAllUpper("מינון"))
	assert.False(t, isAllUpper("123"))
}
