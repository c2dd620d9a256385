// Package parser turns uploaded document bytes into page-attributed,
// section-tagged chunks ready for embedding.
package parser

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"

	"github.com/roeisharon/MedAI/internal/errs"
	"github.com/roeisharon/MedAI/internal/models"
)

// ExtractPages extracts per-page text from a document, dispatching on the
// declared filename's extension. It returns the non-empty pages in order plus
// the document's total page count (empty pages included, for reporting).
//
// Pages that yield only whitespace are dropped. If no page yields text the
// document is likely scanned/image-only and a no-text error is returned,
// distinct from the invalid-format error raised for unparseable bytes.
func ExtractPages(data []byte, filename string) ([]models.Page, int, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return extractPDF(data)
	case ".docx":
		return extractDOCX(data)
	case ".txt":
		return extractText(data)
	default:
		return nil, 0, errs.Newf(errs.KindInvalidFormat, "unsupported extension %q", ext)
	}
}

func extractPDF(data []byte) (pages []models.Page, total int, err error) {
	// ledongthuc/pdf panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			pages, total = nil, 0
			err = errs.Newf(errs.KindInvalidFormat, "pdf reader panic: %v", r)
		}
	}()

	reader, rerr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if rerr != nil {
		return nil, 0, errs.Wrap(errs.KindInvalidFormat, rerr)
	}

	total = reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, terr := page.GetPlainText(nil)
		if terr != nil {
			log.Warn().Err(terr).Int("page", i).Msg("Skipping unreadable page")
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" {
			pages = append(pages, models.Page{Number: i, Text: text})
		}
	}

	if len(pages) == 0 {
		return nil, 0, errs.New(errs.KindNoText, "no extractable text in any page")
	}
	return pages, total, nil
}

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func extractDOCX(data []byte) ([]models.Page, int, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, errs.Wrap(errs.KindInvalidFormat, err)
	}
	defer r.Close()

	// GetContent returns the document XML; tags become line breaks so
	// paragraph structure survives into chunking.
	content := r.Editable().GetContent()
	content = xmlTagPattern.ReplaceAllString(content, "\n")
	content = unescapeXML(content)

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, 0, errs.New(errs.KindNoText, "docx contains no text")
	}
	// DOCX has no fixed pagination; the whole document is one logical page.
	return []models.Page{{Number: 1, Text: strings.Join(lines, "\n")}}, 1, nil
}

func extractText(data []byte) ([]models.Page, int, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, 0, errs.New(errs.KindNoText, "text file is empty after trimming")
	}
	return []models.Page{{Number: 1, Text: text}}, 1, nil
}

var xmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

func unescapeXML(s string) string {
	return xmlEntities.Replace(s)
}
