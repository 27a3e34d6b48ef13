// Package extract turns uploaded attachments into plain text for the
// assistant pipeline. PDFs are read from their text layer first and fall
// back to optical extraction; images always go through optical
// extraction; anything else is treated as a UTF-8 text file.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

var (
	// ErrNoUsableText reports that an attachment was processed but
	// yielded no text (blank scan, empty file, binary garbage).
	ErrNoUsableText = errors.New("extract: no usable text in attachment")

	// ErrUnsupportedAttachment reports an attachment type the pipeline
	// cannot process.
	ErrUnsupportedAttachment = errors.New("extract: unsupported attachment type")
)

// Kind classifies an attachment.
type Kind int

const (
	KindFile Kind = iota
	KindImage
	KindPDF
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPDF:
		return "pdf"
	default:
		return "file"
	}
}

// Attachment is an uploaded document awaiting extraction.
type Attachment struct {
	Name string
	Kind Kind
	MIME string
	Data []byte
}

// Classify builds an Attachment from raw bytes, detecting the MIME type
// from content rather than trusting the filename.
func Classify(name string, data []byte) Attachment {
	mime := http.DetectContentType(data)
	att := Attachment{Name: name, MIME: mime, Data: data}
	switch {
	case strings.HasPrefix(mime, "image/"):
		att.Kind = KindImage
	case mime == "application/pdf" || bytes.HasPrefix(data, []byte("%PDF-")):
		att.Kind = KindPDF
		att.MIME = "application/pdf"
	default:
		att.Kind = KindFile
	}
	return att
}

// Extractor produces plain text from an attachment.
type Extractor interface {
	Extract(ctx context.Context, att Attachment) (string, error)
}

// Text handles the generic-file path: the bytes must decode as UTF-8
// text. Binary content is rejected rather than embedded as mojibake.
func Text(att Attachment) (string, error) {
	if !utf8.Valid(att.Data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedAttachment, att.Name)
	}
	if bytes.IndexByte(att.Data, 0) >= 0 {
		return "", fmt.Errorf("%w: %s contains binary data", ErrUnsupportedAttachment, att.Name)
	}
	text := strings.TrimSpace(string(att.Data))
	if text == "" {
		return "", ErrNoUsableText
	}
	return text, nil
}
