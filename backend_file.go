package streamio

import (
	"context"
	"os"
	"strings"
)

func init() {
	RegisterProtocol("file", openFileHandle)
}

// openFileHandle serves file:// URLs and plain paths.
func openFileHandle(_ context.Context, req OpenRequest) (Handle, error) {
	path := strings.TrimPrefix(req.URL, "file://")

	var (
		f   *os.File
		err error
	)
	if req.Mode == ModeWrite {
		f, err = os.Create(path)
	} else {
		f, err = os.Open(path)
	}
	if err != nil {
		return nil, err
	}

	seekable := false
	if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
		seekable = true
	}
	return &fileHandle{f: f, seekable: seekable}, nil
}

type fileHandle struct {
	f        *os.File
	seekable bool
}

func (h *fileHandle) Read(p []byte) (int, error)  { return h.f.Read(p) }
func (h *fileHandle) Write(p []byte) (int, error) { return h.f.Write(p) }

// Flush is a no-op: writes go straight through os.File.
func (h *fileHandle) Flush() error { return nil }

func (h *fileHandle) Seek(offset int64, whence int) (int64, error) {
	return h.f.Seek(offset, whence)
}

func (h *fileHandle) SeekTime(int, int64, int) (int64, error) {
	return 0, ErrUnsupported
}

func (h *fileHandle) Size() (int64, error) {
	fi, err := h.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (h *fileHandle) Seekable() bool { return h.seekable }

func (h *fileHandle) Property(string) (string, bool)  { return "", false }
func (h *fileHandle) SetProperty(string, string) bool { return false }

func (h *fileHandle) Close() error { return h.f.Close() }
