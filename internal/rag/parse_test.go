package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roeisharon/MedAI/internal/models"
)

func TestParseResponseWellFormed(t *testing.T) {
	raw := `<answer>Take 1 tablet twice daily.</answer>
<citations>[{"text":"Take 1 tablet twice daily with water.","page":1,"section":"DOSAGE"}]</citations>`

	answer, citations := ParseResponse(raw, nil)
	assert.Equal(t, "Take 1 tablet twice daily.", answer)
	require.Len(t, citations, 1)
	assert.Equal(t, "Take 1 tablet twice daily with water.", citations[0].Text)
	assert.Equal(t, 1, citations[0].Page)
	assert.Equal(t, "DOSAGE", citations[0].Section)
}

func TestParseResponseStringCitations(t *testing.T) {
	raw := `<answer>May cause drowsiness.</answer><citations>["May cause drowsiness", "Do not drive"]</citations>`

	answer, citations := ParseResponse(raw, nil)
	assert.Equal(t, "May cause drowsiness.", answer)
	require.Len(t, citations, 2)
	assert.Equal(t, "May cause drowsiness", citations[0].Text)
	assert.Zero(t, citations[0].Page)
}

func TestParseResponsePageAsString(t *testing.T) {
	raw := `<answer>x</answer><citations>[{"text":"q","page":"2","section":"S"}]</citations>`

	_, citations := ParseResponse(raw, nil)
	require.Len(t, citations, 1)
	assert.Equal(t, 2, citations[0].Page)
}

func TestParseResponseCapsCitations(t *testing.T) {
	raw := `<answer>x</answer><citations>["a","b","c","d","e"]</citations>`

	_, citations := ParseResponse(raw, nil)
	assert.Len(t, citations, models.MaxCitations)
}

func TestParseResponseNoTags(t *testing.T) {
	answer, citations := ParseResponse("The leaflet recommends rest and fluids.", nil)
	assert.Equal(t, "The leaflet recommends rest and fluids.", answer)
	assert.Empty(t, citations)
}

func TestParseResponseMissingAnswerTag(t *testing.T) {
	raw := `The dosage is one tablet. <citations>[]</citations>`

	answer, citations := ParseResponse(raw, nil)
	assert.Equal(t, "The dosage is one tablet.", answer)
	assert.Empty(t, citations)
}

func TestParseResponseStraySingleTag(t *testing.T) {
	answer, _ := ParseResponse("<answer>Only an opening tag here.", nil)
	assert.Equal(t, "Only an opening tag here.", answer)
	assert.NotContains(t, answer, "<answer>")
}

func TestParseResponseMalformedCitationsJSON(t *testing.T) {
	raw := `<answer>Fine answer.</answer><citations>[not json at all]</citations>`

	answer, citations := ParseResponse(raw, nil)
	assert.Equal(t, "Fine answer.", answer)
	assert.Empty(t, citations)
}

func TestParseResponseStripsInlinePageRefs(t *testing.T) {
	answer, _ := ParseResponse("<answer>Take with food (page 3). Avoid alcohol (עמוד 2).</answer>", nil)
	assert.Equal(t, "Take with food. Avoid alcohol.", answer)
}

func TestParseResponseRecoversInlineQuotes(t *testing.T) {
	chunks := []models.RetrievedChunk{
		{Text: "DOSAGE\nTake 1 tablet twice daily with water after meals.", Page: 1, Section: "DOSAGE"},
		{Text: "STORAGE\nKeep below 25 degrees in a dry place.", Page: 2, Section: "STORAGE"},
	}
	raw := `According to the leaflet, "Take 1 tablet twice daily with water" is the adult dose.`

	answer, citations := ParseResponse(raw, chunks)
	require.Len(t, citations, 1)
	assert.Equal(t, "Take 1 tablet twice daily with water", citations[0].Text)
	assert.Equal(t, 1, citations[0].Page)
	assert.Equal(t, "DOSAGE", citations[0].Section)
	assert.NotContains(t, answer, "Take 1 tablet twice daily")
}

func TestParseResponseIgnoresUnrelatedQuotes(t *testing.T) {
	chunks := []models.RetrievedChunk{
		{Text: "DOSAGE\nTake 1 tablet twice daily.", Page: 1, Section: "DOSAGE"},
	}
	raw := `The term "pharmacokinetics elimination halflife metabolite clearance" is not covered.`

	answer, citations := ParseResponse(raw, chunks)
	assert.Empty(t, citations)
	assert.Contains(t, answer, "pharmacokinetics")
}
