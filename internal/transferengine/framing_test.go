package transferengine

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeHeader(&buf, "report.pdf"); err != nil {
		t.Fatalf("writeHeader: %v", err)
	}
	name, err := readHeader(&buf)
	if err != nil {
		t.Fatalf("readHeader: %v", err)
	}
	if name != "report.pdf" {
		t.Fatalf("expected report.pdf, got %q", name)
	}
}

func TestReadHeaderRejectsTruncatedInput(t *testing.T) {
	if _, err := readHeader(bytes.NewReader([]byte{0x00})); err == nil {
		t.Fatalf("expected error reading truncated header")
	}
}
