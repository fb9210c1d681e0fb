// Package extractor converts uploaded bytes+mime into normalized text
// chunks. Real PDF/DOCX byte-level parsing is out of scope (it is treated as
// a pluggable concern); this package owns the chunking and text-cleaning
// rules that apply regardless of how the raw text was decoded.
package extractor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/cloo-solutions/kbcore/internal/domain"
)

const (
	targetChunkChars = 1200
	chunkSlack       = 200
	maxParagraphChars = 2400
)

// Chunk is one ordered fragment of extracted text.
type Chunk struct {
	ChunkIndex int
	Text       string
}

// Metadata describes the source document beyond its text.
type Metadata struct {
	PageCount *int
	WordCount int
}

// RawTextDecoder decodes a document's bytes into plain text, preserving
// paragraph order. Text MIME types never need one; PDF/DOCX need a real
// decoder supplied by the embedder of this package (none ships here — see
// DESIGN.md). defaultDecoder below is a best-effort fallback, not a parser.
type RawTextDecoder interface {
	Decode(bytes []byte, mime string) (text string, pageCount *int, err error)
}

// Extractor is the pluggable text-extraction contract.
type Extractor interface {
	Extract(bytes []byte, mime string, desiredTitle string) ([]Chunk, Metadata, error)
}

// textExtractor is the default Extractor implementation: it handles
// text/* MIME types directly and delegates everything else to a
// RawTextDecoder before applying the paragraph-chunking rules.
type textExtractor struct {
	decoder RawTextDecoder
}

// New creates an Extractor. If decoder is nil, a best-effort UTF-8 decoder
// is used for non-text MIME types (adequate for tests and for deployments
// where no real PDF/DOCX parsing library is wired in).
func New(decoder RawTextDecoder) Extractor {
	if decoder == nil {
		decoder = defaultDecoder{}
	}
	return &textExtractor{decoder: decoder}
}

func (e *textExtractor) Extract(raw []byte, mime string, desiredTitle string) ([]Chunk, Metadata, error) {
	var text string
	var pageCount *int

	switch {
	case strings.HasPrefix(mime, "text/"):
		text = string(raw)
	case mime == "application/pdf",
		mime == "application/msword",
		mime == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		t, pc, err := e.decoder.Decode(raw, mime)
		if err != nil {
			return nil, Metadata{}, domain.NewDomainErrorWithCause(domain.KindUnsupportedMime, "failed to decode document", err)
		}
		text = t
		pageCount = pc
	default:
		return nil, Metadata{}, domain.NewDomainError(domain.KindUnsupportedMime, fmt.Sprintf("unsupported mime type %q", mime))
	}

	cleaned := cleanText(text)
	if strings.TrimSpace(cleaned) == "" {
		return nil, Metadata{}, domain.NewDomainError(domain.KindEmptyContent, "extracted content is empty")
	}

	chunks := chunkByParagraph(cleaned)
	meta := Metadata{PageCount: pageCount, WordCount: len(strings.Fields(cleaned))}

	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = Chunk{ChunkIndex: i, Text: c}
	}
	return out, meta, nil
}

// cleanText normalizes whitespace and drops formatting-artifact short
// lines, following the precursor document processor's cleaning rules.
var (
	whitespaceRun   = regexp.MustCompile(`[ \t]+`)
	repeatedDots    = regexp.MustCompile(`\.{3,}`)
	repeatedDashes  = regexp.MustCompile(`-{3,}`)
)

func cleanText(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	cleanedLines := make([]string, 0, len(lines))
	for _, line := range lines {
		line = whitespaceRun.ReplaceAllString(strings.TrimSpace(line), " ")
		line = repeatedDots.ReplaceAllString(line, "...")
		line = repeatedDashes.ReplaceAllString(line, "---")
		if line == "" {
			cleanedLines = append(cleanedLines, "")
			continue
		}
		hasLetter := false
		for _, r := range line {
			if unicode.IsLetter(r) {
				hasLetter = true
				break
			}
		}
		if len(line) > 10 || (len(line) > 3 && hasLetter) {
			cleanedLines = append(cleanedLines, line)
		}
	}
	return strings.TrimSpace(strings.Join(cleanedLines, "\n"))
}

// chunkByParagraph groups paragraphs into chunks targeting
// targetChunkChars +/- chunkSlack characters, never splitting mid-sentence
// unless a single paragraph exceeds maxParagraphChars, in which case it is
// split at whitespace boundaries.
func chunkByParagraph(text string) []string {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, p := range paragraphs {
		if len(p) > maxParagraphChars {
			flush()
			chunks = append(chunks, splitAtWhitespace(p, targetChunkChars)...)
			continue
		}

		if current.Len() == 0 {
			current.WriteString(p)
			continue
		}

		if current.Len()+2+len(p) <= targetChunkChars+chunkSlack {
			current.WriteString("\n\n")
			current.WriteString(p)
			continue
		}

		flush()
		current.WriteString(p)
	}
	flush()

	return chunks
}

func splitParagraphs(text string) []string {
	raw := regexp.MustCompile(`\n\s*\n`).Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitAtWhitespace(text string, target int) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for start < len(runes) {
		end := start + target
		if end >= len(runes) {
			out = append(out, strings.TrimSpace(string(runes[start:])))
			break
		}
		cut := end
		for i := end; i > start; i-- {
			if unicode.IsSpace(runes[i-1]) {
				cut = i
				break
			}
		}
		if cut <= start {
			cut = end
		}
		out = append(out, strings.TrimSpace(string(runes[start:cut])))
		start = cut
	}
	return out
}

// defaultDecoder is a best-effort stand-in for a real PDF/DOCX parser: it
// treats the raw bytes as UTF-8 text. It exists so this package is usable
// without any third-party document-parsing dependency; production
// deployments are expected to supply a real RawTextDecoder.
type defaultDecoder struct{}

func (defaultDecoder) Decode(raw []byte, mime string) (string, *int, error) {
	return string(raw), nil, nil
}
