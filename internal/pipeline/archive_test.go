package pipeline

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func TestDecodeArchive(t *testing.T) {
	data := zipArchive(t, "x.export.CSV", "a\tb", "c\td")
	payload, err := DecodeArchive(data, 1<<20)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(payload) != "a\tb\nc\td\n" {
		t.Errorf("Unexpected payload %q", payload)
	}
}

func TestDecodeArchive_Errors(t *testing.T) {
	var empty bytes.Buffer
	if err := zip.NewWriter(&empty).Close(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		data    []byte
		max     int64
		wantErr string
	}{
		{"not a zip", []byte("plain text"), 1 << 20, "open zip"},
		{"no entries", empty.Bytes(), 1 << 20, "no entries"},
		{"too large", zipArchive(t, "big.CSV", strings.Repeat("x", 100)), 10, "exceeds 10 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeArchive(tt.data, tt.max)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
