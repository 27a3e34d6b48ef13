package extract

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

// textlessPDF builds a well-formed single-page PDF whose only content
// stream is empty, the shape of a scanned page without a text layer.
func textlessPDF() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	objects := []string{
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n",
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n",
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>\nendobj\n",
		"4 0 obj\n<< /Length 0 >>\nstream\nendstream\nendobj\n",
	}
	offsets := make([]int, 0, len(objects))
	for _, obj := range objects {
		offsets = append(offsets, buf.Len())
		buf.WriteString(obj)
	}

	xref := buf.Len()
	buf.WriteString("xref\n0 5\n0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 5 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

func TestPDFTextNoTextLayer(t *testing.T) {
	if _, err := pdfText(textlessPDF()); !errors.Is(err, ErrNoUsableText) {
		t.Fatalf("pdfText(textless) error = %v, want ErrNoUsableText", err)
	}
}

func TestPDFTextRejectsGarbage(t *testing.T) {
	_, err := pdfText([]byte("%PDF-1.7\nnot actually a pdf"))
	if err == nil {
		t.Fatal("pdfText(garbage) error = nil, want parse failure")
	}
	if errors.Is(err, ErrNoUsableText) {
		t.Fatalf("pdfText(garbage) error = %v, want a parse failure, not ErrNoUsableText", err)
	}
}
