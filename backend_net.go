package streamio

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

func init() {
	RegisterProtocol("tcp", openTCPHandle)
	RegisterProtocol("tls", openTLSHandle)
	RegisterProtocol("udp", openUDPHandle)
	RegisterProtocol("unix", openUnixHandle)
}

// interruptPollInterval bounds how long a blocked network operation waits
// between interrupt callback polls.
const interruptPollInterval = 500 * time.Millisecond

// hostPort extracts the host:port part of a scheme://host:port/... URL.
func hostPort(rawURL string) string {
	s := rawURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?"); i >= 0 {
		s = s[:i]
	}
	return s
}

// loadCAPool reads a PEM bundle into a certificate pool.
func loadCAPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates in %s", path)
	}
	return pool, nil
}

func openTCPHandle(ctx context.Context, req OpenRequest) (Handle, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", hostPort(req.URL))
	if err != nil {
		return nil, err
	}
	return &connHandle{conn: conn, interrupt: req.Interrupt}, nil
}

func openTLSHandle(ctx context.Context, req OpenRequest) (Handle, error) {
	conf := &tls.Config{}
	if v, ok := req.Options.Consume("tls_verify"); ok {
		conf.InsecureSkipVerify = v != "1"
	}
	if path, ok := req.Options.Consume("ca_file"); ok && path != "" {
		pool, err := loadCAPool(path)
		if err != nil {
			return nil, fmt.Errorf("tls: %w", err)
		}
		conf.RootCAs = pool
	}
	d := &tls.Dialer{Config: conf}
	conn, err := d.DialContext(ctx, "tcp", hostPort(req.URL))
	if err != nil {
		return nil, err
	}
	return &connHandle{conn: conn, interrupt: req.Interrupt}, nil
}

// openUDPHandle listens in read mode and dials in write mode.
func openUDPHandle(ctx context.Context, req OpenRequest) (Handle, error) {
	addr := hostPort(req.URL)
	if req.Mode == ModeWrite {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "udp", addr)
		if err != nil {
			return nil, err
		}
		return &connHandle{conn: conn, interrupt: req.Interrupt}, nil
	}
	uaddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", uaddr)
	if err != nil {
		return nil, err
	}
	return &connHandle{conn: conn, interrupt: req.Interrupt}, nil
}

func openUnixHandle(ctx context.Context, req OpenRequest) (Handle, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", strings.TrimPrefix(req.URL, "unix://"))
	if err != nil {
		return nil, err
	}
	return &connHandle{conn: conn, interrupt: req.Interrupt}, nil
}

// connHandle adapts a net.Conn. Reads poll the interrupt callback between
// short deadline windows so a silent peer cannot wedge the session.
type connHandle struct {
	conn      net.Conn
	interrupt InterruptFunc
}

func (h *connHandle) Read(p []byte) (int, error) {
	for {
		if h.interrupt() {
			return 0, ErrInterrupted
		}
		if err := h.conn.SetReadDeadline(time.Now().Add(interruptPollInterval)); err != nil {
			return 0, err
		}
		n, err := h.conn.Read(p)
		if n > 0 || err == nil {
			return n, nil
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			continue
		}
		return 0, err
	}
}

func (h *connHandle) Write(p []byte) (int, error) {
	if h.interrupt() {
		return 0, ErrInterrupted
	}
	return h.conn.Write(p)
}

func (h *connHandle) Flush() error { return nil }

func (h *connHandle) Seek(int64, int) (int64, error) {
	return 0, ErrUnsupported
}

func (h *connHandle) SeekTime(int, int64, int) (int64, error) {
	return 0, ErrUnsupported
}

func (h *connHandle) Size() (int64, error) { return 0, ErrUnsupported }

func (h *connHandle) Seekable() bool { return false }

func (h *connHandle) Property(name string) (string, bool) {
	if name == "local_addr" {
		return h.conn.LocalAddr().String(), true
	}
	return "", false
}

func (h *connHandle) SetProperty(string, string) bool { return false }

func (h *connHandle) Close() error { return h.conn.Close() }
