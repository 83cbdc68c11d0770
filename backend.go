package streamio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Backend contract errors.
var (
	// ErrProtocolNotFound reports that no protocol handler exists for the
	// URL's scheme. Backends wrap it so the adapter can tell a missing
	// handler apart from an ordinary connection failure.
	ErrProtocolNotFound = errors.New("protocol not found")

	// ErrUnsupported is returned when an optional operation is not supported.
	ErrUnsupported = errors.New("operation not supported")

	// ErrInterrupted reports that the interrupt callback aborted an
	// operation in progress.
	ErrInterrupted = errors.New("operation interrupted")
)

// Handle property names understood by the built-in backends.
const (
	PropMIMEType   = "mime_type"
	PropICYHeaders = "icy_metadata_headers"
	PropICYPacket  = "icy_metadata_packet"
)

// InterruptFunc is polled synchronously from inside a backend's blocking
// open/read/write loops. Implementations must be non-blocking, free of
// side effects beyond reading a cancellation flag, and safe to call from
// any goroutine or foreign thread. Returning true makes the backend abort
// the operation promptly and report a failure.
type InterruptFunc func() bool

// OpenRequest carries everything a backend needs to establish a session.
type OpenRequest struct {
	URL       string
	Mode      Mode
	Interrupt InterruptFunc // never nil
	Options   *Options
	Logger    *slog.Logger
}

// Backend is a multi-protocol I/O layer the stream adapter delegates to.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Open establishes a session. Implementations honor req.Interrupt in
	// blocking loops, consume the option entries they understand, and wrap
	// ErrProtocolNotFound when no handler exists for the URL's scheme.
	Open(ctx context.Context, req OpenRequest) (Handle, error)
}

// Handle is one open backend session.
//
// Read and Write follow io conventions. Flush forces buffered writes onto
// the wire; handles without a write buffer return nil. SeekTime and Size
// return ErrUnsupported when the protocol cannot answer. Property exposes
// named introspection values (PropMIMEType, PropICYHeaders, ...) with the
// bool reporting whether the handle knows the name at all.
type Handle interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Flush() error
	Seek(offset int64, whence int) (int64, error)
	SeekTime(streamIndex int, timestamp int64, flags int) (int64, error)
	Size() (int64, error)
	Seekable() bool
	Property(name string) (string, bool)
	SetProperty(name, value string) bool
	Close() error
}

// ProtocolOpener opens one session for a single URL scheme.
type ProtocolOpener func(ctx context.Context, req OpenRequest) (Handle, error)

// protocolRegistry holds the protocol openers behind DefaultBackend.
type protocolRegistry struct {
	openers map[string]ProtocolOpener
	mu      sync.RWMutex
}

var globalProtocolRegistry = &protocolRegistry{
	openers: make(map[string]ProtocolOpener),
}

// RegisterProtocol installs an opener for a URL scheme in the default
// backend. Built-in handlers register themselves at init time; callers may
// add or replace schemes before opening streams.
func RegisterProtocol(scheme string, open ProtocolOpener) {
	globalProtocolRegistry.mu.Lock()
	defer globalProtocolRegistry.mu.Unlock()
	globalProtocolRegistry.openers[strings.ToLower(scheme)] = open
}

func lookupProtocol(scheme string) (ProtocolOpener, bool) {
	globalProtocolRegistry.mu.RLock()
	defer globalProtocolRegistry.mu.RUnlock()
	open, ok := globalProtocolRegistry.openers[strings.ToLower(scheme)]
	return open, ok
}

// RegisteredProtocols returns the schemes with a registered Go handler,
// sorted. Schemes served by the native backend are not listed.
func RegisteredProtocols() []string {
	globalProtocolRegistry.mu.RLock()
	defer globalProtocolRegistry.mu.RUnlock()
	out := make([]string, 0, len(globalProtocolRegistry.openers))
	for scheme := range globalProtocolRegistry.openers {
		out = append(out, scheme)
	}
	sort.Strings(out)
	return out
}

// urlScheme extracts the scheme of a URL. Strings without one map to
// "file"; so do single-letter prefixes, which are Windows drive paths.
func urlScheme(rawURL string) string {
	i := strings.IndexByte(rawURL, ':')
	if i < 2 {
		return "file"
	}
	s := rawURL[:i]
	for j := 0; j < len(s); j++ {
		c := s[j]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case j > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return "file"
		}
	}
	return strings.ToLower(s)
}

// netBackend is the default backend: registered Go protocol handlers
// first, then the native avio binding for everything else it can serve.
type netBackend struct{}

func (netBackend) Name() string { return "net" }

func (netBackend) Open(ctx context.Context, req OpenRequest) (Handle, error) {
	scheme := urlScheme(req.URL)
	if open, ok := lookupProtocol(scheme); ok {
		return open(ctx, req)
	}
	if IsAvioAvailable() {
		return avioOpenHandle(ctx, req)
	}
	return nil, fmt.Errorf("%s: %w", scheme, ErrProtocolNotFound)
}

// DefaultBackend returns the backend used when Config.Backend is nil.
func DefaultBackend() Backend { return netBackend{} }
