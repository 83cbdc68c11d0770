package streamio

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

func init() {
	RegisterProtocol("http", openHTTPHandle)
	RegisterProtocol("https", openHTTPHandle)
}

// openHTTPHandle serves http:// and https:// URLs, including ICY
// (Shoutcast/Icecast) streams with in-band metadata.
func openHTTPHandle(_ context.Context, req OpenRequest) (Handle, error) {
	if req.Mode == ModeWrite {
		return nil, fmt.Errorf("http: write mode: %w", ErrUnsupported)
	}

	tlsConf := &tls.Config{}
	if v, ok := req.Options.Consume("tls_verify"); ok {
		tlsConf.InsecureSkipVerify = v != "1"
	}
	if path, ok := req.Options.Consume("ca_file"); ok && path != "" {
		pool, err := loadCAPool(path)
		if err != nil {
			return nil, fmt.Errorf("http: %w", err)
		}
		tlsConf.RootCAs = pool
	}

	header := make(http.Header)
	if ua, ok := req.Options.Consume("user-agent"); ok && ua != "" {
		header.Set("User-Agent", ua)
	}
	if hs, ok := req.Options.Consume("headers"); ok {
		for rest := hs; rest != ""; {
			var line string
			line, rest = cutLine(rest)
			if name, val, found := strings.Cut(line, ": "); found && name != "" {
				header.Add(name, val)
			}
		}
	}
	if jar, ok := req.Options.Consume("cookies"); ok && jar != "" {
		header.Set("Cookie", cookieHeader(jar))
	}
	if icy, ok := req.Options.Consume("icy"); ok && icy == "1" {
		header.Set("Icy-MetaData", "1")
	}

	hctx, cancel := context.WithCancel(context.Background())
	h := &httpHandle{
		url:       req.URL,
		interrupt: req.Interrupt,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: tlsConf,
			},
		},
		header: header,
		ctx:    hctx,
		cancel: cancel,
		size:   -1,
	}
	if err := h.connect(0); err != nil {
		cancel()
		return nil, err
	}
	go h.watchInterrupt()
	return h, nil
}

// cookieHeader turns the jar's "NAME=VALUE; path=...; domain=..." lines
// into a single Cookie header value.
func cookieHeader(jar string) string {
	var parts []string
	for _, line := range strings.Split(jar, "\n") {
		nv, _, _ := strings.Cut(line, ";")
		nv = strings.TrimSpace(nv)
		if nv != "" {
			parts = append(parts, nv)
		}
	}
	return strings.Join(parts, "; ")
}

// collectICYHeaders renders the Icy-* response headers as "name: value"
// lines, sorted by name. Icy-Metaint is transport framing, not metadata,
// and stays out.
func collectICYHeaders(hdr http.Header) string {
	var keys []string
	for k := range hdr {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "icy-") && lk != "icy-metaint" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		for _, v := range hdr[k] {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// httpHandle is one HTTP session. Requests run on a context detached from
// the open context so the body outlives the caller's open call; the
// interrupt callback is the cancellation path instead.
type httpHandle struct {
	url       string
	interrupt InterruptFunc
	client    *http.Client
	header    http.Header

	ctx    context.Context
	cancel context.CancelFunc

	body     io.ReadCloser
	pos      int64
	size     int64
	seekable bool
	mime     string

	icyHeaders string
	icyPacket  string
	metaInt    int
	metaLeft   int
}

// connect issues a GET at the given byte offset, replacing any open body.
// The first connect (offset 0) fills the descriptor fields.
func (h *httpHandle) connect(offset int64) error {
	if h.interrupt() {
		return ErrInterrupted
	}
	req, err := http.NewRequestWithContext(h.ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return err
	}
	req.Header = h.header.Clone()
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return fmt.Errorf("http: server returned %s", resp.Status)
	}
	if offset > 0 && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return fmt.Errorf("http: server ignored range request (%s)", resp.Status)
	}

	h.closeBody()
	h.body = resp.Body
	h.pos = offset
	if h.metaInt > 0 {
		h.metaLeft = h.metaInt - int(offset%int64(h.metaInt))
	}

	if offset == 0 {
		h.mime = resp.Header.Get("Content-Type")
		if resp.ContentLength >= 0 {
			h.size = resp.ContentLength
		}
		h.seekable = resp.Header.Get("Accept-Ranges") == "bytes"
		if v := resp.Header.Get("Icy-Metaint"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				h.metaInt = n
				h.metaLeft = n
			}
		}
		h.icyHeaders = collectICYHeaders(resp.Header)
	}
	return nil
}

// watchInterrupt cancels in-flight requests once the interrupt callback
// fires; a blocked body read cannot be unstuck any other way.
func (h *httpHandle) watchInterrupt() {
	t := time.NewTicker(interruptPollInterval)
	defer t.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-t.C:
			if h.interrupt() {
				h.cancel()
				return
			}
		}
	}
}

// Read demultiplexes ICY metadata blocks out of the body when the server
// negotiated an interval, storing the latest non-empty block for the
// metadata properties. Only content bytes reach p.
func (h *httpHandle) Read(p []byte) (int, error) {
	if h.interrupt() {
		return 0, ErrInterrupted
	}
	if h.body == nil {
		return 0, io.EOF
	}
	if h.metaInt > 0 {
		if h.metaLeft == 0 {
			if err := h.readMetaBlock(); err != nil {
				return 0, err
			}
		}
		if len(p) > h.metaLeft {
			p = p[:h.metaLeft]
		}
	}
	n, err := h.body.Read(p)
	h.pos += int64(n)
	if h.metaInt > 0 {
		h.metaLeft -= n
	}
	if n > 0 {
		// Deliver the bytes now; the body re-reports its error on the
		// next call.
		return n, nil
	}
	return 0, err
}

// readMetaBlock consumes one ICY metadata block: a length byte counting
// 16-byte units, then that many bytes of NUL-padded metadata.
func (h *httpHandle) readMetaBlock() error {
	var lenByte [1]byte
	if _, err := io.ReadFull(h.body, lenByte[:]); err != nil {
		return err
	}
	h.metaLeft = h.metaInt
	n := int(lenByte[0]) * 16
	if n == 0 {
		return nil
	}
	block := make([]byte, n)
	if _, err := io.ReadFull(h.body, block); err != nil {
		return err
	}
	if meta := strings.TrimRight(string(block), "\x00"); meta != "" {
		h.icyPacket = meta
	}
	return nil
}

func (h *httpHandle) Write([]byte) (int, error) { return 0, ErrUnsupported }
func (h *httpHandle) Flush() error              { return nil }

func (h *httpHandle) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart {
		return 0, fmt.Errorf("http: only absolute seeks: %w", ErrUnsupported)
	}
	if offset == h.pos && h.body != nil {
		return offset, nil
	}
	if err := h.connect(offset); err != nil {
		return 0, err
	}
	return offset, nil
}

func (h *httpHandle) SeekTime(int, int64, int) (int64, error) {
	return 0, ErrUnsupported
}

func (h *httpHandle) Size() (int64, error) {
	if h.size < 0 {
		return 0, ErrUnsupported
	}
	return h.size, nil
}

func (h *httpHandle) Seekable() bool { return h.seekable }

func (h *httpHandle) Property(name string) (string, bool) {
	switch name {
	case PropMIMEType:
		return h.mime, true
	case PropICYHeaders:
		return h.icyHeaders, true
	case PropICYPacket:
		return h.icyPacket, true
	}
	return "", false
}

func (h *httpHandle) SetProperty(name, value string) bool {
	if name == PropICYPacket {
		h.icyPacket = value
		return true
	}
	return false
}

func (h *httpHandle) closeBody() {
	if h.body != nil {
		h.body.Close()
		h.body = nil
	}
}

func (h *httpHandle) Close() error {
	h.closeBody()
	h.cancel()
	return nil
}
