package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/doctalk-ai/doctalk/engine/domain"
)

// minimalPDF builds a syntactically plausible PDF body with one text block
// per given string.
func minimalPDF(texts ...string) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	for _, t := range texts {
		b.WriteString("BT (")
		b.WriteString(t)
		b.WriteString(") Tj ET\n")
	}
	b.WriteString("%%EOF\n")
	return []byte(b.String())
}

func TestPDFText_Basic(t *testing.T) {
	long := strings.Repeat("the vector store keeps chunks per document ", 5)
	got, err := PDFText(minimalPDF(long), "doc.pdf")
	if err != nil {
		t.Fatalf("PDFText: %v", err)
	}
	if !strings.Contains(got, "vector store keeps chunks") {
		t.Errorf("extracted text missing content: %q", got)
	}
}

func TestPDFText_MissingHeader(t *testing.T) {
	_, err := PDFText([]byte("plain text, not a pdf"), "fake.pdf")
	var ee *domain.ExtractionError
	if !errors.As(err, &ee) || ee.Kind != domain.ExtractUnreadable {
		t.Fatalf("expected unreadable extraction error, got %v", err)
	}
}

func TestPDFText_TooLittleText(t *testing.T) {
	_, err := PDFText(minimalPDF("tiny"), "tiny.pdf")
	if !errors.Is(err, domain.ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestExtractPDFText_IgnoresOutsideTextBlocks(t *testing.T) {
	data := []byte("%PDF-1.4\n(not extracted)\nBT (inside block) ET\n")
	got := extractPDFText(data)
	if got != "inside block" {
		t.Errorf("got %q, want %q", got, "inside block")
	}
}

func TestCleanPDFText_Escapes(t *testing.T) {
	in := `a \(quoted\) word\nnext`
	got := cleanPDFText(in)
	if !strings.Contains(got, "(quoted)") {
		t.Errorf("escapes not resolved: %q", got)
	}
	if !strings.Contains(got, "\n") {
		t.Errorf("newline escape not resolved: %q", got)
	}
}
