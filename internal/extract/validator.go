// Package extract validates uploaded PDFs and pulls their plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
)

// Validation failures for uploaded statements.
var (
	ErrEmptyFile    = errors.New("uploaded file is empty")
	ErrFileTooLarge = errors.New("uploaded file exceeds the size limit")
	ErrNotPDF       = errors.New("uploaded file is not a PDF")
)

var pdfMagic = []byte("%PDF")

// Validator checks uploaded statement bytes before conversion starts.
type Validator struct {
	MaxBytes int64
}

// NewValidator creates a validator with the given upload size limit.
func NewValidator(maxBytes int64) *Validator {
	return &Validator{MaxBytes: maxBytes}
}

// Validate rejects empty uploads, uploads over the size limit, and files
// whose content does not start with the PDF magic header.
func (v *Validator) Validate(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyFile
	}

	if v.MaxBytes > 0 && int64(len(data)) > v.MaxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, len(data), v.MaxBytes)
	}

	if !bytes.HasPrefix(data, pdfMagic) {
		return ErrNotPDF
	}

	return nil
}
