package streamio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMD5Stream_DigestToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "digest.txt")

	s, err := Open(context.Background(), "md5://"+out, &Config{Mode: ModeWrite})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if _, err := s.Write([]byte("hello ")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write([]byte("world")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "5eb63bbbe01eeed093cb22bb8f5acdc3\n" {
		t.Errorf("digest = %q, want md5 of \"hello world\"", got)
	}
}

func TestMD5Stream_SchemeColonForm(t *testing.T) {
	out := filepath.Join(t.TempDir(), "digest.txt")

	s, err := Open(context.Background(), "md5:"+out, &Config{Mode: ModeWrite})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	// Digest of zero bytes written.
	if got := string(data); got != "d41d8cd98f00b204e9800998ecf8427e\n" {
		t.Errorf("digest = %q", got)
	}
}

func TestMD5Stream_ReadModeRejected(t *testing.T) {
	_, err := Open(context.Background(), "md5://whatever", nil)
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("Open error = %v, want ErrUnsupported", err)
	}
}

func TestMD5Handle_CloseIdempotent(t *testing.T) {
	out := filepath.Join(t.TempDir(), "digest.txt")
	h, err := openMD5Handle(context.Background(), OpenRequest{
		URL:  "md5://" + out,
		Mode: ModeWrite,
	})
	if err != nil {
		t.Fatal(err)
	}

	h.Write([]byte("x"))
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}

	// A second close must not rewrite the digest.
	os.WriteFile(out, []byte("tampered"), 0o644)
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	after, _ := os.ReadFile(out)
	if string(after) != "tampered" {
		t.Errorf("second Close rewrote the file (first digest %q)", before)
	}
}
