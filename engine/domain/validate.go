package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidateQuestion checks a chat question before retrieval.
func ValidateQuestion(q string) error {
	if strings.TrimSpace(q) == "" {
		return fmt.Errorf("validate: question is empty")
	}
	if utf8.RuneCountInString(q) > MaxQuestionLen {
		return fmt.Errorf("validate: question exceeds %d characters", MaxQuestionLen)
	}
	return nil
}

// ValidatePDFName checks an uploaded filename. Only .pdf uploads are
// accepted, mirroring the upload contract of the HTTP layer.
func ValidatePDFName(name string) error {
	if name == "" {
		return fmt.Errorf("validate: filename is empty")
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return fmt.Errorf("validate: %q is not a .pdf file", name)
	}
	return nil
}

// ValidateDocument checks a Document before registration.
func ValidateDocument(d Document) error {
	if d.ID == "" {
		return fmt.Errorf("validate: document id is empty")
	}
	if !ValidSourceTypes[d.Type] {
		return fmt.Errorf("validate: unknown source type %q", d.Type)
	}
	if d.Name == "" {
		return fmt.Errorf("validate: document name is empty")
	}
	if d.ChunkCount < 1 {
		return fmt.Errorf("validate: document has no chunks")
	}
	return nil
}
