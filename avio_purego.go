//go:build (darwin || linux) && !noavio

// Native backend binding the FFmpeg avio layer via purego.

package streamio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	avioOnce       sync.Once
	avformatHandle uintptr
	avutilHandle   uintptr
	avioInitErr    error
)

// libavformat function pointers
var (
	avformatVersion     func() uint32
	avformatNetworkInit func() int32

	avioOpen2    func(pctx *uintptr, url string, flags int32, intCB uintptr, opts *uintptr) int32
	avioCloseFn  func(ctx uintptr) int32
	avioReadFn   func(ctx uintptr, buf uintptr, size int32) int32
	avioWriteFn  func(ctx uintptr, buf uintptr, size int32)
	avioFlushFn  func(ctx uintptr)
	avioSeekFn   func(ctx uintptr, offset int64, whence int32) int64
	avioSizeFn   func(ctx uintptr) int64
	avioSeekTime func(ctx uintptr, streamIndex int32, timestamp int64, flags int32) int64
)

// libavutil function pointers
var (
	avDictSet  func(pm *uintptr, key, value string, flags int32) int32
	avDictGet  func(m uintptr, key string, prev uintptr, flags int32) uintptr
	avDictFree func(pm *uintptr)
	avOptGet   func(obj uintptr, name string, searchFlags int32, out *uintptr) int32
	avOptSet   func(obj uintptr, name, value string, searchFlags int32) int32
	avFree     func(ptr uintptr)
	avStrerror func(errnum int32, buf uintptr, size uintptr) int32
)

// Constants from the avformat/avutil ABI.
const (
	avioFlagRead  = 1
	avioFlagWrite = 2

	avOptSearchChildren = 1
	avDictIgnoreSuffix  = 2

	// FFERRTAG(0xF8,'P','R','O') and FFERRTAG('E','O','F',' ').
	avErrProtocolNotFound = -(0x4F<<24 | 0x52<<16 | 0x50<<8 | 0xF8)
	avErrEOF              = -(0x20<<24 | 0x46<<16 | 0x4F<<8 | 0x45)
)

// avioInterruptCB mirrors AVIOInterruptCB. avio_open2 copies it by value
// into the new context, so the struct only has to live across the call.
type avioInterruptCB struct {
	callback uintptr
	opaque   uintptr
}

// Interrupt callbacks are dispatched through one permanent trampoline
// (purego callback slots are a finite resource) keyed by an opaque id.
var (
	avioInterruptMu         sync.RWMutex
	avioInterrupts          = map[uintptr]InterruptFunc{}
	avioInterruptNextID     uintptr
	avioInterruptTrampoline uintptr
)

func registerAvioInterrupt(fn InterruptFunc) uintptr {
	avioInterruptMu.Lock()
	defer avioInterruptMu.Unlock()
	avioInterruptNextID++
	id := avioInterruptNextID
	avioInterrupts[id] = fn
	return id
}

func unregisterAvioInterrupt(id uintptr) {
	avioInterruptMu.Lock()
	defer avioInterruptMu.Unlock()
	delete(avioInterrupts, id)
}

// avDictEntry mirrors AVDictionaryEntry.
type avDictEntry struct {
	key   uintptr
	value uintptr
}

func loadAvio() error {
	avioOnce.Do(func() {
		avioInitErr = loadAvioLibs()
	})
	return avioInitErr
}

func loadAvioLibs() error {
	util, err := dlopenFirst(avioLibPaths("STREAMIO_AVUTIL_LIB", "libavutil", avutilVersions))
	if err != nil {
		return fmt.Errorf("failed to load libavutil: %w", err)
	}
	format, err := dlopenFirst(avioLibPaths("STREAMIO_AVFORMAT_LIB", "libavformat", avformatVersions))
	if err != nil {
		return fmt.Errorf("failed to load libavformat: %w", err)
	}
	avutilHandle = util
	avformatHandle = format
	registerAvioSymbols()

	avioInterruptTrampoline = purego.NewCallback(func(opaque uintptr) int32 {
		avioInterruptMu.RLock()
		fn := avioInterrupts[opaque]
		avioInterruptMu.RUnlock()
		if fn != nil && fn() {
			return 1
		}
		return 0
	})

	avformatNetworkInit()
	return nil
}

// Soname majors going back a few releases, newest first.
var (
	avformatVersions = []int{62, 61, 60, 59}
	avutilVersions   = []int{60, 59, 58, 57}
)

func avioSonames(base string, versions []int) []string {
	var names []string
	if runtime.GOOS == "darwin" {
		names = append(names, base+".dylib")
		for _, v := range versions {
			names = append(names, fmt.Sprintf("%s.%d.dylib", base, v))
		}
		return names
	}
	names = append(names, base+".so")
	for _, v := range versions {
		names = append(names, fmt.Sprintf("%s.so.%d", base, v))
	}
	return names
}

func avioLibPaths(envVar, base string, versions []int) []string {
	var paths []string

	// Environment variable overrides (highest priority)
	if envPath := os.Getenv(envVar); envPath != "" {
		paths = append(paths, envPath)
	}
	names := avioSonames(base, versions)
	if dir := os.Getenv("STREAMIO_FFMPEG_DIR"); dir != "" {
		for _, name := range names {
			paths = append(paths, filepath.Join(dir, "lib", name))
		}
		for _, name := range names {
			paths = append(paths, filepath.Join(dir, name))
		}
	}

	// Bare sonames go through the default loader search path.
	paths = append(paths, names...)

	// System paths (lowest priority)
	var dirs []string
	switch runtime.GOOS {
	case "darwin":
		dirs = []string{"/usr/local/lib", "/opt/homebrew/lib"}
	case "linux":
		dirs = []string{"/usr/local/lib", "/usr/lib", "/usr/lib/x86_64-linux-gnu", "/usr/lib/aarch64-linux-gnu"}
	}
	for _, dir := range dirs {
		for _, name := range names {
			paths = append(paths, filepath.Join(dir, name))
		}
	}

	return paths
}

func dlopenFirst(paths []string) (uintptr, error) {
	var lastErr error
	for _, path := range paths {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			return handle, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate paths")
	}
	return 0, lastErr
}

func registerAvioSymbols() {
	purego.RegisterLibFunc(&avformatVersion, avformatHandle, "avformat_version")
	purego.RegisterLibFunc(&avformatNetworkInit, avformatHandle, "avformat_network_init")
	purego.RegisterLibFunc(&avioOpen2, avformatHandle, "avio_open2")
	purego.RegisterLibFunc(&avioCloseFn, avformatHandle, "avio_close")
	purego.RegisterLibFunc(&avioReadFn, avformatHandle, "avio_read")
	purego.RegisterLibFunc(&avioWriteFn, avformatHandle, "avio_write")
	purego.RegisterLibFunc(&avioFlushFn, avformatHandle, "avio_flush")
	purego.RegisterLibFunc(&avioSeekFn, avformatHandle, "avio_seek")
	purego.RegisterLibFunc(&avioSizeFn, avformatHandle, "avio_size")
	purego.RegisterLibFunc(&avioSeekTime, avformatHandle, "avio_seek_time")

	purego.RegisterLibFunc(&avDictSet, avutilHandle, "av_dict_set")
	purego.RegisterLibFunc(&avDictGet, avutilHandle, "av_dict_get")
	purego.RegisterLibFunc(&avDictFree, avutilHandle, "av_dict_free")
	purego.RegisterLibFunc(&avOptGet, avutilHandle, "av_opt_get")
	purego.RegisterLibFunc(&avOptSet, avutilHandle, "av_opt_set")
	purego.RegisterLibFunc(&avFree, avutilHandle, "av_free")
	purego.RegisterLibFunc(&avStrerror, avutilHandle, "av_strerror")
}

// IsAvioAvailable reports whether the FFmpeg libraries could be loaded.
func IsAvioAvailable() bool {
	return loadAvio() == nil
}

// NewAvioBackend returns a backend that serves every URL through the
// native avio layer, bypassing the registered Go protocol handlers.
func NewAvioBackend() (Backend, error) {
	if err := loadAvio(); err != nil {
		return nil, err
	}
	return avioBackend{}, nil
}

type avioBackend struct{}

func (avioBackend) Name() string { return "avio" }

func (avioBackend) Open(ctx context.Context, req OpenRequest) (Handle, error) {
	return avioOpenHandle(ctx, req)
}

// avioOpenHandle opens a native avio session. The option dictionary is
// handed to avio_open2, which strips the entries it applied; whatever is
// left in the dictionary afterwards was ignored by the protocol.
func avioOpenHandle(_ context.Context, req OpenRequest) (Handle, error) {
	if err := loadAvio(); err != nil {
		return nil, fmt.Errorf("%s: %w", urlScheme(req.URL), ErrProtocolNotFound)
	}

	var dict uintptr
	for _, p := range req.Options.Pairs() {
		avDictSet(&dict, p.Key, p.Value, 0)
	}

	flags := int32(avioFlagRead)
	if req.Mode == ModeWrite {
		flags = avioFlagWrite
	}

	interruptID := registerAvioInterrupt(req.Interrupt)
	cb := &avioInterruptCB{callback: avioInterruptTrampoline, opaque: interruptID}

	var avctx uintptr
	ret := avioOpen2(&avctx, req.URL, flags, uintptr(unsafe.Pointer(cb)), &dict)
	runtime.KeepAlive(cb)
	if ret < 0 {
		unregisterAvioInterrupt(interruptID)
		if dict != 0 {
			avDictFree(&dict)
		}
		if ret == avErrProtocolNotFound {
			return nil, fmt.Errorf("%s: %w", urlScheme(req.URL), ErrProtocolNotFound)
		}
		return nil, fmt.Errorf("avio: open: %s", avioErrString(ret))
	}

	leftover := map[string]bool{}
	var entry uintptr
	for {
		entry = avDictGet(dict, "", entry, avDictIgnoreSuffix)
		if entry == 0 {
			break
		}
		e := (*avDictEntry)(unsafe.Pointer(entry))
		leftover[strings.ToLower(goStringFromPtr(e.key))] = true
	}
	for _, p := range req.Options.Pairs() {
		if !leftover[strings.ToLower(p.Key)] {
			req.Options.MarkConsumed(p.Key)
		}
	}
	if dict != 0 {
		avDictFree(&dict)
	}

	// The context's seekable flag is not part of the public ABI surface;
	// a successful size query implies the protocol supports absolute
	// repositioning.
	seekable := req.Mode == ModeRead && avioSizeFn(avctx) >= 0

	return &avioHandle{
		ctx:         avctx,
		interruptID: interruptID,
		write:       req.Mode == ModeWrite,
		seekable:    seekable,
	}, nil
}

type avioHandle struct {
	ctx         uintptr
	interruptID uintptr
	write       bool
	seekable    bool
}

func (h *avioHandle) Read(p []byte) (int, error) {
	if h.ctx == 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	n := avioReadFn(h.ctx, uintptr(unsafe.Pointer(&p[0])), int32(len(p)))
	runtime.KeepAlive(p)
	if n > 0 {
		return int(n), nil
	}
	if n == 0 || n == avErrEOF {
		return 0, io.EOF
	}
	return 0, fmt.Errorf("avio: read: %s", avioErrString(n))
}

// Write cannot observe the context's sticky error flag through the ABI;
// write failures surface when the handle is closed.
func (h *avioHandle) Write(p []byte) (int, error) {
	if h.ctx == 0 {
		return 0, ErrNoSession
	}
	if len(p) == 0 {
		return 0, nil
	}
	avioWriteFn(h.ctx, uintptr(unsafe.Pointer(&p[0])), int32(len(p)))
	runtime.KeepAlive(p)
	return len(p), nil
}

func (h *avioHandle) Flush() error {
	if h.ctx != 0 {
		avioFlushFn(h.ctx)
	}
	return nil
}

func (h *avioHandle) Seek(offset int64, whence int) (int64, error) {
	if h.ctx == 0 {
		return 0, ErrNoSession
	}
	r := avioSeekFn(h.ctx, offset, int32(whence))
	if r < 0 {
		return 0, fmt.Errorf("avio: seek: %s", avioErrString(int32(r)))
	}
	return r, nil
}

func (h *avioHandle) SeekTime(streamIndex int, timestamp int64, flags int) (int64, error) {
	if h.ctx == 0 {
		return 0, ErrNoSession
	}
	r := avioSeekTime(h.ctx, int32(streamIndex), timestamp, int32(flags))
	if r < 0 {
		return 0, fmt.Errorf("avio: seek_time: %s", avioErrString(int32(r)))
	}
	return r, nil
}

func (h *avioHandle) Size() (int64, error) {
	if h.ctx == 0 {
		return 0, ErrNoSession
	}
	r := avioSizeFn(h.ctx)
	if r < 0 {
		return 0, fmt.Errorf("avio: size: %s", avioErrString(int32(r)))
	}
	return r, nil
}

func (h *avioHandle) Seekable() bool { return h.seekable }

func (h *avioHandle) Property(name string) (string, bool) {
	if h.ctx == 0 {
		return "", false
	}
	var out uintptr
	if avOptGet(h.ctx, name, avOptSearchChildren, &out) < 0 || out == 0 {
		return "", false
	}
	s := goStringFromPtr(out)
	avFree(out)
	return s, true
}

func (h *avioHandle) SetProperty(name, value string) bool {
	if h.ctx == 0 {
		return false
	}
	return avOptSet(h.ctx, name, value, avOptSearchChildren) >= 0
}

func (h *avioHandle) Close() error {
	if h.ctx == 0 {
		return nil
	}
	ret := avioCloseFn(h.ctx)
	h.ctx = 0
	unregisterAvioInterrupt(h.interruptID)
	if ret < 0 {
		return fmt.Errorf("avio: close: %s", avioErrString(ret))
	}
	return nil
}

func avioErrString(code int32) string {
	buf := make([]byte, 128)
	if avStrerror(code, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf))) < 0 {
		return fmt.Sprintf("error %d", code)
	}
	runtime.KeepAlive(buf)
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}
