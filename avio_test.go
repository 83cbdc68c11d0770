package streamio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestAvioHandle_FileRoundTrip(t *testing.T) {
	if !IsAvioAvailable() {
		t.Skip("FFmpeg avformat not available")
	}

	path := filepath.Join(t.TempDir(), "clip.bin")
	if err := os.WriteFile(path, []byte("avio 0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	h, err := avioOpenHandle(context.Background(), OpenRequest{
		URL:       path,
		Interrupt: neverInterrupt,
		Options:   NewOptions(),
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("avioOpenHandle error: %v", err)
	}
	defer h.Close()

	if !h.Seekable() {
		t.Error("local file not reported seekable")
	}
	if size, err := h.Size(); err != nil || size != 15 {
		t.Errorf("Size() = %d, %v, want 15, nil", size, err)
	}

	buf := make([]byte, 15)
	if _, err := io.ReadFull(h, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "avio 0123456789" {
		t.Errorf("content = %q", buf)
	}

	if _, err := h.Seek(5, io.SeekStart); err != nil {
		t.Fatalf("Seek error: %v", err)
	}
	if _, err := io.ReadFull(h, buf[:10]); err != nil {
		t.Fatal(err)
	}
	if string(buf[:10]) != "0123456789" {
		t.Errorf("content after seek = %q", buf[:10])
	}
}

func TestAvioHandle_WriteRoundTrip(t *testing.T) {
	if !IsAvioAvailable() {
		t.Skip("FFmpeg avformat not available")
	}

	path := filepath.Join(t.TempDir(), "out.bin")
	h, err := avioOpenHandle(context.Background(), OpenRequest{
		URL:       path,
		Mode:      ModeWrite,
		Interrupt: neverInterrupt,
		Options:   NewOptions(),
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("avioOpenHandle error: %v", err)
	}

	if _, err := h.Write([]byte("written through avio")); err != nil {
		t.Fatal(err)
	}
	if err := h.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "written through avio" {
		t.Errorf("file contents = %q, %v", data, err)
	}
}

func TestAvioOpen_UnknownProtocol(t *testing.T) {
	if !IsAvioAvailable() {
		t.Skip("FFmpeg avformat not available")
	}

	_, err := avioOpenHandle(context.Background(), OpenRequest{
		URL:       "nosuchproto://host/stream",
		Interrupt: neverInterrupt,
		Options:   NewOptions(),
		Logger:    discardLogger(),
	})
	if !errors.Is(err, ErrProtocolNotFound) {
		t.Errorf("error = %v, want ErrProtocolNotFound", err)
	}
}

func TestAvioOpen_LeftoverOptionsStayUnused(t *testing.T) {
	if !IsAvioAvailable() {
		t.Skip("FFmpeg avformat not available")
	}

	path := filepath.Join(t.TempDir(), "f.bin")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := NewOptions()
	opts.Set("nonsense_option_name", "1")
	h, err := avioOpenHandle(context.Background(), OpenRequest{
		URL:       path,
		Interrupt: neverInterrupt,
		Options:   opts,
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("avioOpenHandle error: %v", err)
	}
	defer h.Close()

	unused := opts.Unused()
	if len(unused) != 1 || unused[0].Key != "nonsense_option_name" {
		t.Errorf("Unused() = %+v, want the rejected option", unused)
	}
}
