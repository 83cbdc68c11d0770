package streamio

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"strings"
)

func init() {
	RegisterProtocol("md5", openMD5Handle)
}

// openMD5Handle serves the md5: pseudo-protocol: a write-only sink that
// hashes everything written and emits the hex digest on close, to the
// file named after the scheme or to standard output when none is given.
func openMD5Handle(_ context.Context, req OpenRequest) (Handle, error) {
	if req.Mode != ModeWrite {
		return nil, fmt.Errorf("md5: read mode: %w", ErrUnsupported)
	}
	target := strings.TrimPrefix(req.URL, "md5://")
	target = strings.TrimPrefix(target, "md5:")
	return &md5Handle{sum: md5.New(), target: target}, nil
}

type md5Handle struct {
	sum    hash.Hash
	target string
	closed bool
}

func (h *md5Handle) Read([]byte) (int, error) { return 0, ErrUnsupported }

func (h *md5Handle) Write(p []byte) (int, error) {
	h.sum.Write(p)
	return len(p), nil
}

func (h *md5Handle) Flush() error { return nil }

func (h *md5Handle) Seek(int64, int) (int64, error) {
	return 0, ErrUnsupported
}

func (h *md5Handle) SeekTime(int, int64, int) (int64, error) {
	return 0, ErrUnsupported
}

func (h *md5Handle) Size() (int64, error) { return 0, ErrUnsupported }

func (h *md5Handle) Seekable() bool { return false }

func (h *md5Handle) Property(string) (string, bool)  { return "", false }
func (h *md5Handle) SetProperty(string, string) bool { return false }

func (h *md5Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	digest := hex.EncodeToString(h.sum.Sum(nil)) + "\n"
	if h.target == "" {
		_, err := os.Stdout.WriteString(digest)
		return err
	}
	return os.WriteFile(h.target, []byte(digest), 0o644)
}
