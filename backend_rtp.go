package streamio

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"strconv"
	"time"

	"github.com/pion/rtp"
)

func init() {
	RegisterProtocol("rtp", openRTPHandle)
}

// openRTPHandle serves rtp:// URLs over plain UDP. Reading depacketizes
// incoming RTP and hands the payloads up as a byte stream; writing wraps
// each buffer in one RTP packet. The payload_type option overrides the
// MP2T default, ssrc pins the outgoing stream identifier.
func openRTPHandle(ctx context.Context, req OpenRequest) (Handle, error) {
	addr := hostPort(req.URL)

	payloadType := uint8(33) // MP2T
	if v, ok := req.Options.Consume("payload_type"); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n < 128 {
			payloadType = uint8(n)
		}
	}
	ssrc := rand.Uint32()
	if v, ok := req.Options.Consume("ssrc"); ok {
		if n, err := strconv.ParseUint(v, 0, 32); err == nil {
			ssrc = uint32(n)
		}
	}

	var conn net.Conn
	if req.Mode == ModeWrite {
		var d net.Dialer
		c, err := d.DialContext(ctx, "udp", addr)
		if err != nil {
			return nil, err
		}
		conn = c
	} else {
		uaddr, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return nil, err
		}
		c, err := net.ListenUDP("udp", uaddr)
		if err != nil {
			return nil, err
		}
		conn = c
	}

	return &rtpHandle{
		conn:        conn,
		interrupt:   req.Interrupt,
		payloadType: payloadType,
		ssrc:        ssrc,
		seq:         uint16(rand.Uint32()),
	}, nil
}

type rtpHandle struct {
	conn      net.Conn
	interrupt InterruptFunc

	payloadType uint8
	ssrc        uint32
	seq         uint16
	ts          uint32

	buf     []byte
	pending []byte
}

// Read returns the payload of the next RTP datagram. Datagrams that do
// not parse as RTP and packets with empty payloads are skipped; payload
// bytes that do not fit in p are held for the next call.
func (h *rtpHandle) Read(p []byte) (int, error) {
	if len(h.pending) > 0 {
		n := copy(p, h.pending)
		h.pending = h.pending[n:]
		return n, nil
	}
	if h.buf == nil {
		h.buf = make([]byte, 64*1024)
	}
	for {
		if h.interrupt() {
			return 0, ErrInterrupted
		}
		if err := h.conn.SetReadDeadline(time.Now().Add(interruptPollInterval)); err != nil {
			return 0, err
		}
		n, err := h.conn.Read(h.buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			return 0, err
		}
		var pkt rtp.Packet
		if err := pkt.Unmarshal(h.buf[:n]); err != nil {
			continue
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		c := copy(p, pkt.Payload)
		if c < len(pkt.Payload) {
			h.pending = append(h.pending[:0], pkt.Payload[c:]...)
		}
		return c, nil
	}
}

// Write sends p as a single RTP packet. The timestamp advances by byte
// count; callers that need media clocking packetize upstream.
func (h *rtpHandle) Write(p []byte) (int, error) {
	if h.interrupt() {
		return 0, ErrInterrupted
	}
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    h.payloadType,
			SequenceNumber: h.seq,
			Timestamp:      h.ts,
			SSRC:           h.ssrc,
		},
		Payload: p,
	}
	buf, err := pkt.Marshal()
	if err != nil {
		return 0, err
	}
	if _, err := h.conn.Write(buf); err != nil {
		return 0, err
	}
	h.seq++
	h.ts += uint32(len(p))
	return len(p), nil
}

func (h *rtpHandle) Flush() error { return nil }

func (h *rtpHandle) Seek(int64, int) (int64, error) {
	return 0, ErrUnsupported
}

func (h *rtpHandle) SeekTime(int, int64, int) (int64, error) {
	return 0, ErrUnsupported
}

func (h *rtpHandle) Size() (int64, error) { return 0, ErrUnsupported }

func (h *rtpHandle) Seekable() bool { return false }

func (h *rtpHandle) Property(name string) (string, bool) {
	if name == "local_addr" {
		return h.conn.LocalAddr().String(), true
	}
	return "", false
}

func (h *rtpHandle) SetProperty(string, string) bool { return false }

func (h *rtpHandle) Close() error { return h.conn.Close() }
