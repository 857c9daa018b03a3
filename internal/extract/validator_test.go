package extract

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAcceptsPDF(t *testing.T) {
	v := NewValidator(1024)

	assert.NoError(t, v.Validate([]byte("%PDF-1.7 content")))
}

func TestValidateRejectsEmptyFile(t *testing.T) {
	v := NewValidator(1024)

	assert.ErrorIs(t, v.Validate(nil), ErrEmptyFile)
	assert.ErrorIs(t, v.Validate([]byte{}), ErrEmptyFile)
}

func TestValidateRejectsOversizedFile(t *testing.T) {
	v := NewValidator(10)

	data := append([]byte("%PDF"), bytes.Repeat([]byte("x"), 20)...)
	assert.ErrorIs(t, v.Validate(data), ErrFileTooLarge)
}

func TestValidateRejectsNonPDF(t *testing.T) {
	v := NewValidator(1024)

	assert.ErrorIs(t, v.Validate([]byte("PK\x03\x04 zip bytes")), ErrNotPDF)
	assert.ErrorIs(t, v.Validate([]byte("plain text")), ErrNotPDF)
}

func TestValidateNoLimitWhenZero(t *testing.T) {
	v := NewValidator(0)

	data := append([]byte("%PDF"), bytes.Repeat([]byte("x"), 1<<20)...)
	assert.NoError(t, v.Validate(data))
}
