package streamio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Stream adapter errors.
var (
	// ErrMissingURL reports an empty URL passed to Open.
	ErrMissingURL = errors.New("no URL given")

	// ErrNoSession reports an operation on a stream whose backend session
	// is gone (never opened, or torn down by a failed reconnect).
	ErrNoSession = errors.New("no backend session")

	// ErrNotSeekable reports a Seek on a stream the backend declared
	// non-seekable.
	ErrNotSeekable = errors.New("stream not seekable")

	// ErrSeekFailed reports that a seek on a seekable stream failed in the
	// backend. The stream stays open; the read position is unchanged.
	ErrSeekFailed = errors.New("seek failed")
)

// wrapperPrefixes are scheme wrappers meaning "the remainder is the real
// URL". Each is stripped at most once, in order, so "lavf://ffmpeg://x"
// loses both while "ffmpeg://lavf://x" keeps the inner one.
var wrapperPrefixes = []string{"lavf://", "ffmpeg://"}

// schemeRewrites maps scheme prefixes the backend does not accept
// verbatim onto ones it does. The first match wins.
var schemeRewrites = []struct{ from, to string }{
	{"mms://", "mmsh://"},
	{"mmshttp://", "mmsh://"},
}

// supportedProtocols lists the schemes Open claims. It mirrors what the
// native backend can serve plus the wrapper prefixes.
var supportedProtocols = []string{
	"lavf", "ffmpeg", "rtmp", "rtsp", "http", "https", "mms", "mmst",
	"mmsh", "mmshttp", "udp", "ftp", "rtp", "httpproxy", "hls", "rtmpe",
	"rtmps", "rtmpt", "rtmpte", "rtmpts", "srtp", "tcp", "tls", "unix",
	"sftp", "md5",
}

// SupportedProtocols returns the URL schemes the adapter accepts.
func SupportedProtocols() []string {
	out := make([]string, len(supportedProtocols))
	copy(out, supportedProtocols)
	return out
}

// Stream is an open byte stream backed by a backend session.
//
// The descriptor fields (Seekable, MIMEType, Demuxer, DemuxerFormat,
// Streaming) are filled by Open and refreshed by a successful reconnect.
// Streams are not safe for concurrent use.
type Stream struct {
	// URL is the backend URL after wrapper stripping and scheme rewriting.
	// The URL originally passed to Open is kept internally; reconnects
	// re-run the full rewrite from it.
	URL string

	// Mode is the I/O direction the stream was opened with.
	Mode Mode

	// Seekable reports whether the backend session supports byte seeking.
	Seekable bool

	// MIMEType is the content type reported by the session, if any.
	MIMEType string

	// Demuxer is the container-probing hint for downstream consumers.
	Demuxer string

	// DemuxerFormat narrows Demuxer to a specific container when the URL
	// implies one (rtmp variants imply flv).
	DemuxerFormat string

	// Streaming is always true: even file-backed sessions go through the
	// backend's buffered I/O.
	Streaming bool

	rawURL    string
	backend   Backend
	cfg       *Config
	logger    *slog.Logger
	interrupt InterruptFunc
	handle    Handle
}

// combineInterrupt folds ctx cancellation and the user callback into the
// single poll function handed to the backend.
func combineInterrupt(ctx context.Context, user InterruptFunc) InterruptFunc {
	return func() bool {
		if ctx.Err() != nil {
			return true
		}
		return user != nil && user()
	}
}

// Open establishes a stream session for rawURL. A nil cfg means
// DefaultConfig. The returned stream's descriptor fields are filled from
// the backend session.
//
// URLs prefixed "rtsp:" after wrapper stripping are not opened here: the
// returned stream has no session and only its Demuxer fields set, telling
// the caller to hand the URL to a demuxing layer that owns the transport.
func Open(ctx context.Context, rawURL string, cfg *Config) (*Stream, error) {
	if rawURL == "" {
		return nil, ErrMissingURL
	}
	cfg = cfg.withDefaults()
	s := &Stream{
		Mode:      cfg.Mode,
		rawURL:    rawURL,
		backend:   cfg.Backend,
		cfg:       cfg,
		logger:    cfg.Logger,
		interrupt: combineInterrupt(ctx, cfg.Interrupt),
	}
	if err := s.open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// open runs the full open sequence from the URL passed to Open. Reconnect
// reuses it, so it resets every descriptor field it may have set on a
// previous run.
func (s *Stream) open(ctx context.Context) error {
	s.handle = nil
	s.Seekable = false
	s.MIMEType = ""
	s.Demuxer = ""
	s.DemuxerFormat = ""
	s.Streaming = false

	url := s.rawURL
	for _, prefix := range wrapperPrefixes {
		url = strings.TrimPrefix(url, prefix)
	}

	if strings.HasPrefix(url, "rtsp:") {
		s.URL = url
		s.Demuxer = "lavf"
		s.DemuxerFormat = "rtsp"
		return nil
	}

	s.logger.Debug("opening stream", "url", url)

	for _, rw := range schemeRewrites {
		if strings.HasPrefix(url, rw.from) {
			url = rw.to + url[len(rw.from):]
			break
		}
	}
	s.URL = url

	opts := buildOptions(s.cfg, s.logger)

	handle, err := s.backend.Open(ctx, OpenRequest{
		URL:       url,
		Mode:      s.Mode,
		Interrupt: s.interrupt,
		Options:   opts,
		Logger:    s.logger,
	})
	if err != nil {
		if errors.Is(err, ErrProtocolNotFound) {
			return fmt.Errorf("opening %s: %w (make sure the backend is built with support for this protocol)", url, err)
		}
		return fmt.Errorf("opening %s: %w", url, err)
	}

	for _, p := range opts.Unused() {
		s.logger.Warn("backend ignored stream option", "key", p.Key, "value", p.Value)
	}

	if mime, ok := handle.Property(PropMIMEType); ok {
		s.MIMEType = mime
	}
	if strings.HasPrefix(url, "rtmp") {
		s.Demuxer = "lavf"
		s.DemuxerFormat = "flv"
	}

	s.handle = handle
	s.Seekable = handle.Seekable()
	s.Streaming = true
	return nil
}

// Read fills p from the session. Any backend error or empty read is
// normalized to io.EOF; a stream with no session reports ErrNoSession.
func (s *Stream) Read(p []byte) (int, error) {
	if s.handle == nil {
		return 0, ErrNoSession
	}
	n, _ := s.handle.Read(p)
	if n > 0 {
		// Deliver the bytes now; a handle pairing its final chunk with
		// an error re-reports it on the next call.
		return n, nil
	}
	return 0, io.EOF
}

// Write sends p through the session and flushes. Short writes are not
// reported: the backend either takes the whole buffer or the write fails.
func (s *Stream) Write(p []byte) (int, error) {
	if s.handle == nil {
		return 0, ErrNoSession
	}
	if _, err := s.handle.Write(p); err != nil {
		return 0, err
	}
	if err := s.handle.Flush(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Seek repositions the stream at an absolute byte offset. Streams the
// backend declared non-seekable fail with ErrNotSeekable before touching
// the session; a backend-side failure comes back wrapped in ErrSeekFailed
// with the stream still usable.
func (s *Stream) Seek(offset int64) error {
	if !s.Seekable {
		return ErrNotSeekable
	}
	if s.handle == nil {
		return ErrNoSession
	}
	if _, err := s.handle.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("%w at offset %d: %v", ErrSeekFailed, offset, err)
	}
	return nil
}

// Close tears down the backend session. It is idempotent.
func (s *Stream) Close() error {
	if s.handle == nil {
		return nil
	}
	err := s.handle.Close()
	s.handle = nil
	return err
}
