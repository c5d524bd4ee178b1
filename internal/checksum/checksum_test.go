package checksum

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sha1("hello world")
const helloSHA1 = "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"

func TestSum(t *testing.T) {
	sum, err := Sum(strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if sum != helloSHA1 {
		t.Errorf("Sum = %s, want %s", sum, helloSHA1)
	}
}

func TestSumBufferIndependentOfBufferSize(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 10000)

	want, err := Sum(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}

	for _, size := range []int{1, 7, 4096, 1 << 20, 0} {
		got, err := SumBuffer(bytes.NewReader(data), size)
		if err != nil {
			t.Fatalf("SumBuffer(%d): %v", size, err)
		}
		if got != want {
			t.Errorf("SumBuffer(%d) = %s, want %s", size, got, want)
		}
	}
}

func TestFileAndMatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	ok, err := Matches(path, strings.ToUpper(helloSHA1))
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if !ok {
		t.Error("expected digest to match")
	}

	ok, err = Matches(path, strings.Repeat("0", Size))
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if ok {
		t.Error("expected digest not to match")
	}
}

func TestFileMissing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	if err := Verify("", "anything"); err != nil {
		t.Errorf("empty expected digest should verify, got %v", err)
	}
	if err := Verify(helloSHA1, helloSHA1); err != nil {
		t.Errorf("equal digests should verify, got %v", err)
	}

	err := Verify(helloSHA1, strings.Repeat("0", Size))
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected *MismatchError, got %v", err)
	}
	if mismatch.Expected != helloSHA1 {
		t.Errorf("Expected = %s, want %s", mismatch.Expected, helloSHA1)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{helloSHA1, true},
		{strings.ToUpper(helloSHA1), true},
		{helloSHA1[:39], false},
		{"zz" + helloSHA1[2:], false},
		{"", false},
	}

	for _, tt := range tests {
		if got := Valid(tt.input); got != tt.valid {
			t.Errorf("Valid(%q) = %v, want %v", tt.input, got, tt.valid)
		}
	}
}
