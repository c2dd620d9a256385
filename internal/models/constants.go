package models

const (
	// ChunkSize and ChunkOverlap are the default splitter bounds, in runes.
	// Larger chunks keep enough context for Hebrew and multi-part questions.
	ChunkSize    = 1200
	ChunkOverlap = 200

	// InjectedScore is assigned to chunks found only by the lexical keyword
	// fallback, below any confident embedding match.
	InjectedScore = 0.3

	// MaxCitations bounds the citation list attached to one answer.
	MaxCitations = 3

	// ContextSeparator joins retrieved chunk blocks inside the system prompt.
	ContextSeparator = "\n\n---\n\n"

	// NoAnswerMessage is returned when retrieval finds nothing relevant.
	NoAnswerMessage = "This information is not available in the provided leaflet."
)

// GreetingPattern matches short social messages in English and Hebrew that
// should not trigger retrieval. The whole trimmed message must match: only a
// trailing run of punctuation may follow the greeting itself, so "hi there,
// what is the dosage?" still goes through the full pipeline.
// RE2's \W is ASCII-only, hence the explicit unicode class at the end.
const GreetingPattern = `^\s*(hi+|hello+|hey+|good\s*(morning|afternoon|evening|day)|shalom|howdy|greetings|what'?s\s*up|thanks?|thank\s*you|bye+|goodbye+|see\s*you|great|awesome|ok+|okay|perfect|got\s*it|understood|שלום|היי+|בוקר\s*טוב|ערב\s*טוב|צהריים\s*טובים|לילה\s*טוב|תודה|תודה\s*רבה|יופי|מעולה|בסדר|אוקיי|נהדר|מצוין|כן|לא|אוקי|מה\s*קורה|מה\s*נשמע|מה\s*המצב|מה\s*חדש|מה\s*העניינים|מה\s*איתך|איך\s*אתה|איך\s*את|איך\s*הולך|הכל\s*בסדר)[^\p{L}\p{N}_]*$`

// StopwordPattern removes interrogative/filler words before the keyword
// embedding query, in both languages.
const StopwordPattern = `(^|\s)(what|how|why|when|where|which|does|is|are|the|מה|מהם|מהן|איך|כיצד|מתי|היכן|למה|מדוע|האם|זה|זו|הם|הן|של|עם|על|את|לי|לנו|לך|הוא|היא|כמה|איזה|איזו|אילו|תסביר|תגיד|ספר|פרט|הסבר)(\s|$)`

// QueryPunctPattern is the punctuation stripped from queries before keyword
// extraction.
const QueryPunctPattern = `[?!.,;:״'"()]`

// KeywordPattern extracts alphanumeric runs of length >= 3 from a query,
// covering Latin and Hebrew scripts.
const KeywordPattern = `[\p{Hebrew}\w]{3,}`

// HebrewPrefixes are the single/double-letter particles prepended to Hebrew
// words (definite article, conjunctions, prepositions). The lexical fallback
// strips and adds them to catch morphological variants of query keywords.
var HebrewPrefixes = []string{"ה", "ו", "ב", "ל", "מ", "כ", "ש", "מה", "של", "על"}

// MedicalSystemPrompt is the grounded-answer instruction. The single %s is
// replaced with the retrieved leaflet excerpts.
const MedicalSystemPrompt = `You are a medical information assistant. Your ONLY source of truth is the medical leaflet content provided in the LEAFLET EXCERPTS section below.

STRICT RULES:
1. Answer based on information present in the LEAFLET EXCERPTS.
2. Look carefully through ALL excerpts — the answer may be spread across multiple chunks.
3. If the excerpts contain ANY relevant information, use it to answer.
   Only say "This information is not available in the provided leaflet."
   if the excerpts contain absolutely nothing relevant.
4. Do NOT add external medical knowledge beyond what is in the leaflet.
5. You may use conversation history to understand follow-up questions,
   but factual answers must be grounded only in the leaflet excerpts.
6. Be concise and accurate. Do not speculate or extrapolate. Answer only what was asked, nothing more.
7. Do NOT add any polite closing phrases, introductions, or extra commentary. Answer directly.
8. ALWAYS output citations — this is MANDATORY for every single response without exception.
   You MUST include verbatim quotes from the excerpts that support your answer.
   Never omit the citations block, even for simple or obvious answers.
   Each citation MUST be a direct quote from the excerpts, with page number.
   If you cannot find a supporting quote, use the closest relevant text from the excerpts as one.
9. NEVER include citations or page references inside the <answer> text. All citations MUST be in the <citations> block only.

OUTPUT FORMAT - you MUST always use these exact XML tags, no exceptions:
<answer>
[Your answer here - NO inline citations, NO (page X), no citations inside the answer text.]
</answer>
<citations>
[
  {"text": "exact verbatim quote from leaflet", "page": 3, "section": "Side Effects"},
  {"text": "another exact quote", "page": 1, "section": null}
]
</citations>

CRITICAL FORMATTING RULES:
- The <answer> block must contain ONLY the answer text — no citations, no page references, no "(עמוד X)", no "ציטוט:"
- All citations go EXCLUSIVELY in the <citations> JSON array
- Do NOT write citations inline in the answer text
- Do NOT write (עמוד X) inside the answer
- Do NOT write "ציטוט:" or "מקורות:" inside the answer

Even for follow-up or clarification questions, always output both <answer> and <citations> tags.
If truly no relevant information is found: <answer>This information is not available in the provided leaflet.</answer><citations>[]</citations>

IMPORTANT REMINDER: Citations are MANDATORY for EVERY answer. If you provide an answer, you MUST include at least one citation from the excerpts in the <citations> block. NEVER put citations or quotes inside the <answer> text.

---
LEAFLET EXCERPTS (retrieved for this question):
%s`

// GreetingSystemPrompt handles the social path: no retrieval, no citations.
const GreetingSystemPrompt = `You are a friendly medical leaflet assistant. The user has greeted you or sent a short social message. Respond warmly and briefly (1-2 sentences), and remind them that you can answer questions about the medical leaflet they uploaded. Do not provide any medical information in this response.`
