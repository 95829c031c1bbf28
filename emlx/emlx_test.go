package emlx

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStrip(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want []byte
	}{
		{
			name: "length line removed",
			raw:  []byte("37\nSubject: hi\n\nbody"),
			want: []byte("Subject: hi\n\nbody"),
		},
		{
			name: "length value not validated",
			raw:  []byte("99999\nSubject: hi\n"),
			want: []byte("Subject: hi\n"),
		},
		{
			name: "no digit prefix",
			raw:  []byte("Subject: hi\n\nbody"),
			want: []byte("Subject: hi\n\nbody"),
		},
		{
			name: "digit without line feed",
			raw:  []byte("12345"),
			want: []byte("12345"),
		},
		{
			name: "empty",
			raw:  []byte{},
			want: []byte{},
		},
		{
			name: "crlf length line",
			raw:  []byte("10\r\nFrom: a\r\n"),
			want: []byte("From: a\r\n"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Strip(tt.raw)
			if string(got) != string(tt.want) {
				t.Errorf("Strip() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInspect(t *testing.T) {
	frame := Inspect([]byte("5\nabc"))
	if !frame.HasLength {
		t.Fatal("expected length line")
	}
	if frame.Declared != 5 || frame.Payload != 3 {
		t.Errorf("Inspect() = %+v, want declared 5 payload 3", frame)
	}
	if !frame.Mismatch() {
		t.Error("expected mismatch for short payload")
	}

	frame = Inspect([]byte("3\nabc<plist/>"))
	if frame.Mismatch() {
		t.Error("trailing plist must not count as mismatch")
	}

	frame = Inspect([]byte("Subject: x"))
	if frame.HasLength || frame.Mismatch() {
		t.Errorf("Inspect() = %+v, want no framing", frame)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1.emlx")
	if err := os.WriteFile(path, []byte("14\nSubject: test\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFile(path, nil)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "Subject: test\n" {
		t.Errorf("ReadFile() = %q", got)
	}

	if _, err := ReadFile(filepath.Join(dir, "missing.emlx"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}
