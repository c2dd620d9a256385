// Package retriever implements multi-strategy chunk retrieval: semantic
// search on the verbatim query, a second pass with question words stripped,
// and a lexical fallback that catches exact substring matches the embedding
// space misses, which happens often in Hebrew where prefix particles change
// the surface form of a word.
package retriever

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/roeisharon/MedAI/internal/models"
)

// Index is the slice of the vector store the retriever needs.
type Index interface {
	Search(ctx context.Context, namespace, query string, limit int) ([]models.RetrievedChunk, error)
	GetAll(ctx context.Context, namespace string) ([]models.RetrievedChunk, error)
}

var (
	stopwordPattern = regexp.MustCompile(`(?i)` + models.StopwordPattern)
	punctPattern    = regexp.MustCompile(models.QueryPunctPattern)
	keywordPattern  = regexp.MustCompile(models.KeywordPattern)
)

type Retriever struct {
	index Index
}

func New(index Index) *Retriever {
	return &Retriever{index: index}
}

// Search returns up to limit chunks relevant to the query, ranked by score
// descending and deduplicated by exact text (the higher score wins a
// collision). An unindexed or empty namespace yields an empty result, not an
// error.
func (r *Retriever) Search(ctx context.Context, namespace, query string, limit int) ([]models.RetrievedChunk, error) {
	seen := map[string]models.RetrievedChunk{}

	merge := func(results []models.RetrievedChunk) {
		for _, res := range results {
			if prev, ok := seen[res.Text]; !ok || res.Score > prev.Score {
				seen[res.Text] = res
			}
		}
	}

	// Pass 1: the question exactly as asked.
	results, err := r.index.Search(ctx, namespace, query, limit)
	if err != nil {
		return nil, err
	}
	merge(results)

	// Pass 2: keywords only. Filler words dominate the embedding of short
	// questions; stripping them sharpens the query.
	if keywords := StripStopwords(query); keywords != "" && keywords != query {
		results, err = r.index.Search(ctx, namespace, keywords, limit)
		if err != nil {
			return nil, err
		}
		merge(results)
	}

	ranked := make([]models.RetrievedChunk, 0, len(seen))
	for _, res := range seen {
		ranked = append(ranked, res)
	}

	// Pass 3: lexical fallback. Any chunk containing a morphological variant
	// of a query keyword is injected with a fixed low score, so exact matches
	// are never lost to embedding blind spots.
	injected, err := r.lexicalFallback(ctx, namespace, query, seen)
	if err != nil {
		return nil, err
	}
	ranked = append(ranked, injected...)

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (r *Retriever) lexicalFallback(ctx context.Context, namespace, query string, seen map[string]models.RetrievedChunk) ([]models.RetrievedChunk, error) {
	words := ExpandKeywords(query)
	if len(words) == 0 {
		return nil, nil
	}

	all, err := r.index.GetAll(ctx, namespace)
	if err != nil {
		return nil, err
	}

	var injected []models.RetrievedChunk
	for _, chunk := range all {
		if _, dup := seen[chunk.Text]; dup {
			continue
		}
		if containsAny(chunk.Text, words) {
			chunk.Score = models.InjectedScore
			injected = append(injected, chunk)
		}
	}
	return injected, nil
}

// StripStopwords removes punctuation and interrogative/filler words from a
// query, returning the trimmed remainder.
func StripStopwords(query string) string {
	clean := punctPattern.ReplaceAllString(query, " ")
	// The pattern consumes a flanking space per match, so repeat until fixed
	// point to catch consecutive stopwords.
	for {
		next := stopwordPattern.ReplaceAllString(clean, " ")
		if next == clean {
			break
		}
		clean = next
	}
	return strings.TrimSpace(strings.Join(strings.Fields(clean), " "))
}

// ExpandKeywords tokenizes the query into words of length >= 3 and expands
// each with Hebrew prefix-particle variants: the bare root for a prefixed
// word, and prefixed forms for a bare one.
func ExpandKeywords(query string) []string {
	clean := punctPattern.ReplaceAllString(query, " ")
	words := keywordPattern.FindAllString(clean, -1)

	set := map[string]struct{}{}
	for _, w := range words {
		set[w] = struct{}{}
		for _, prefix := range models.HebrewPrefixes {
			if root, ok := strings.CutPrefix(w, prefix); ok && len([]rune(root)) >= 3 {
				set[root] = struct{}{}
			}
			set[prefix+w] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	return out
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
