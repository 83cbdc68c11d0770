// Package streamio exposes a uniform byte-stream facade over a pluggable
// multi-protocol I/O backend.
//
// Key pieces include:
//   - Stream: open/read/write/seek/close with a descriptor (seekability,
//     MIME type, demuxer routing hints)
//   - Control: typed size/time-seek/metadata/reconnect operations
//   - Options/Tags: ordered, case-insensitive key/value containers
//   - Built-in Go protocol handlers and a native FFmpeg avio binding
//
// # Architecture
//
//	Open: strip wrapper prefixes -> delegate rtsp -> rewrite legacy schemes ->
//	      build option dictionary -> backend.Open -> descriptor
//	Read/Write/Seek/Control: thin normalization over the backend Handle
//
// Reconnect is emulated: the session is closed and the full open sequence
// runs again with the original URL, mode, options and interrupt callback.
//
// # Backends
//
// The default backend dispatches on URL scheme: file, http/https (with ICY
// metadata demuxing), tcp, tls, udp, unix, rtp and md5 are served by Go
// handlers; every other scheme falls through to the native avio layer when
// libavformat/libavutil can be loaded. NewAvioBackend forces everything
// through the native layer. Custom backends implement the Backend and
// Handle interfaces.
//
// Bindings load the FFmpeg libraries with purego (CGO_ENABLED=0). Set
// STREAMIO_AVFORMAT_LIB/STREAMIO_AVUTIL_LIB to exact library paths, or
// STREAMIO_FFMPEG_DIR to an FFmpeg install prefix.
//
// # Build Tags
//
// The noavio tag disables the native binding; the default backend then
// serves only the Go protocol handlers.
//
// # Delegated Schemes
//
// rtsp: URLs never open a byte stream here. Open returns a descriptor
// whose Demuxer fields route the URL to a demuxing layer that owns the
// transport; I/O calls on such a stream report ErrNoSession.
package streamio
