package auth

import (
	"io"
	"os"
	"strings"
	"testing"
)

func TestReadLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "trailing newline", input: "igw_abc\n", want: "igw_abc"},
		{name: "no newline", input: "igw_abc", want: "igw_abc"},
		{name: "only first line", input: "first\nsecond\n", want: "first"},
		{name: "surrounding spaces", input: "  key  \n", want: "key"},
		{name: "empty", input: "", wantErr: true},
		{name: "blank line", input: "   \n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readLine(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("readLine() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("readLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadKey_Pipe(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()

	if _, err := io.WriteString(w, "piped-key\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	got, err := ReadKey(r, io.Discard)
	if err != nil {
		t.Fatalf("ReadKey() error: %v", err)
	}
	if got != "piped-key" {
		t.Errorf("ReadKey() = %q, want %q", got, "piped-key")
	}
}
