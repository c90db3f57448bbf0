package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/doctalk-ai/doctalk/engine/domain"
)

// MinPDFTextLen is the minimum number of extracted characters for a PDF to
// be considered usable. Scanned or image-only PDFs fall below it.
const MinPDFTextLen = 100

// PDFText extracts readable text from raw PDF bytes. It scans BT/ET text
// blocks for parenthesised string operands, which covers uncompressed
// content streams. Bytes that don't start with the PDF header are rejected
// as unreadable.
func PDFText(data []byte, name string) (string, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return "", domain.NewExtractionError(domain.ExtractUnreadable, name,
			fmt.Errorf("missing %%PDF header"))
	}

	text := extractPDFText(data)
	if len(text) < MinPDFTextLen {
		return "", fmt.Errorf("pdf %s: %w", name, domain.ErrEmptyContent)
	}
	return text, nil
}

// extractPDFText pulls text between parentheses inside BT...ET blocks.
func extractPDFText(data []byte) string {
	var texts []string

	inText := false
	for i := 0; i < len(data)-1; i++ {
		if data[i] == 'B' && data[i+1] == 'T' && (i == 0 || !isAlpha(data[i-1])) {
			inText = true
			continue
		}
		if data[i] == 'E' && data[i+1] == 'T' && inText && (i+2 >= len(data) || !isAlpha(data[i+2])) {
			inText = false
			continue
		}

		if inText && data[i] == '(' {
			end := bytes.IndexByte(data[i+1:], ')')
			if end >= 0 {
				text := cleanPDFText(string(data[i+1 : i+1+end]))
				if text != "" {
					texts = append(texts, text)
				}
				i += end + 1
			}
		}
	}

	return strings.Join(texts, " ")
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// cleanPDFText resolves common PDF escape sequences.
func cleanPDFText(s string) string {
	s = strings.ReplaceAll(s, "\\n", "\n")
	s = strings.ReplaceAll(s, "\\r", "\r")
	s = strings.ReplaceAll(s, "\\t", "\t")
	s = strings.ReplaceAll(s, "\\(", "(")
	s = strings.ReplaceAll(s, "\\)", ")")
	s = strings.ReplaceAll(s, "\\\\", "\\")
	return strings.TrimSpace(s)
}
