package ingest

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"paperlens/internal/models"
	"paperlens/internal/util"
)

// ErrNoExtractableText marks PDFs with no text layer (scanned documents).
var ErrNoExtractableText = errors.New("no extractable text in pdf")

// Parsed is the ingestion output for one document.
type Parsed struct {
	Text      string
	Title     string
	Abstract  string
	PageCount int
	Figures   []models.Figure
}

var captionPattern = regexp.MustCompile(`(?is)(Figure|Fig\.?)\s+(\d+[a-zA-Z]?)[:.\s]+(.{10,300}?)(\n\n|\n[A-Z]|$)`)

// ParsePDF extracts full text, basic metadata and figure captions.
func ParsePDF(path string) (Parsed, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Parsed{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return Parsed{}, fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return Parsed{}, fmt.Errorf("read extracted text: %w", err)
	}
	text := util.SanitizeText(strings.TrimSpace(buf.String()))
	if text == "" {
		return Parsed{}, ErrNoExtractableText
	}

	out := Parsed{
		Text:      text,
		Title:     heuristicTitle(text),
		Abstract:  heuristicAbstract(text),
		PageCount: r.NumPage(),
		Figures:   extractFigures(r),
	}
	return out, nil
}

// heuristicTitle takes the first non-empty line.
func heuristicTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

var (
	abstractStart = regexp.MustCompile(`(?i)\babstract\b[:.\s]*`)
	abstractEnd   = regexp.MustCompile(`(?i)\b(1\.?\s+)?introduction\b|\bkeywords\b`)
)

// heuristicAbstract returns the text between an "Abstract" marker and the
// introduction/keywords, capped at 3000 characters.
func heuristicAbstract(text string) string {
	head := text
	if len(head) > 10000 {
		head = head[:10000]
	}
	start := abstractStart.FindStringIndex(head)
	if start == nil {
		return ""
	}
	rest := head[start[1]:]
	if end := abstractEnd.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	rest = strings.TrimSpace(rest)
	if len(rest) > 3000 {
		rest = rest[:3000]
	}
	return rest
}

// extractFigures scans each page for figure captions so the visual phase
// knows what to look at and where.
func extractFigures(r *pdf.Reader) []models.Figure {
	var figures []models.Figure
	seen := make(map[string]bool)
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, m := range captionPattern.FindAllStringSubmatch(pageText, -1) {
			figID := strings.ToLower(m[2])
			if seen[figID] {
				continue
			}
			seen[figID] = true
			caption := strings.Join(strings.Fields(m[3]), " ")
			figures = append(figures, models.Figure{
				FigureID: "fig-" + figID,
				Page:     pageNum,
				Caption:  caption,
			})
		}
	}
	return figures
}
