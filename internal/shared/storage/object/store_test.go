package object

import (
	"errors"
	"strings"
	"testing"
)

func TestBundleKeyIsNamespacedPerUser(t *testing.T) {
	a := BundleKey("user-a", "job-1")
	b := BundleKey("user-b", "job-1")
	if a == b {
		t.Fatalf("expected distinct keys, got %q", a)
	}
	if !strings.HasSuffix(a, "/mock-pdf/job-1.pdf") {
		t.Fatalf("unexpected key %q", a)
	}
	if strings.Contains(a, "user-a") {
		t.Fatalf("raw user id leaked into key %q", a)
	}
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "abc/mock-pdf/j.pdf", want: "abc/mock-pdf/j.pdf"},
		{in: "abc//mock-pdf/./j.pdf", want: "abc/mock-pdf/j.pdf"},
		{in: "../etc/passwd", wantErr: true},
		{in: "/abs/key", wantErr: true},
		{in: "a/../../b", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CleanKey(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("CleanKey(%q): expected ErrInvalidKey, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
