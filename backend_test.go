package streamio

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestURLScheme(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://host/x", "http"},
		{"HTTPS://host/x", "https"},
		{"md5:output.txt", "md5"},
		{"rtp://239.0.0.1:1234", "rtp"},
		{"a+b-c.d://x", "a+b-c.d"},
		{"/plain/path", "file"},
		{"relative/path.mkv", "file"},
		{"C:\\media\\clip.mkv", "file"},
		{"c:/media/clip.mkv", "file"},
		{"has space://x", "file"},
		{"1http://x", "file"},
		{"", "file"},
	}

	for _, tt := range tests {
		if got := urlScheme(tt.url); got != tt.want {
			t.Errorf("urlScheme(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestRegisterProtocol_Dispatch(t *testing.T) {
	opened := false
	RegisterProtocol("testproto", func(_ context.Context, req OpenRequest) (Handle, error) {
		opened = true
		return &fakeHandle{readData: []byte("via testproto")}, nil
	})

	h, err := DefaultBackend().Open(context.Background(), OpenRequest{
		URL:       "testproto://anything",
		Interrupt: neverInterrupt,
		Options:   NewOptions(),
	})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer h.Close()

	if !opened {
		t.Error("registered opener was not called")
	}

	if !slices.Contains(RegisteredProtocols(), "testproto") {
		t.Error("RegisteredProtocols() does not list testproto")
	}
}

func TestRegisteredProtocols_SortedBuiltins(t *testing.T) {
	protos := RegisteredProtocols()
	if !slices.IsSorted(protos) {
		t.Errorf("RegisteredProtocols() not sorted: %v", protos)
	}
	for _, want := range []string{"file", "http", "https", "tcp", "udp", "rtp", "md5"} {
		if !slices.Contains(protos, want) {
			t.Errorf("built-in scheme %q not registered", want)
		}
	}
}

func TestDefaultBackend_UnknownScheme(t *testing.T) {
	if IsAvioAvailable() {
		t.Skip("native backend present; unknown schemes go to it instead")
	}

	_, err := DefaultBackend().Open(context.Background(), OpenRequest{
		URL:       "gopher://host/1",
		Interrupt: neverInterrupt,
		Options:   NewOptions(),
	})
	if !errors.Is(err, ErrProtocolNotFound) {
		t.Errorf("Open error = %v, want ErrProtocolNotFound", err)
	}
}
