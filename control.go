package streamio

import "context"

// ControlRequest is a control operation on a stream. The variant set is
// closed: SizeRequest, TimeSeekRequest, MetadataRequest and
// ReconnectRequest. Control answers anything else with ErrUnsupported.
type ControlRequest interface{ controlRequest() }

// SizeRequest asks for the total byte size of the session.
type SizeRequest struct{}

// TimeSeekRequest repositions the session by media timestamp instead of
// byte offset, for protocols that index by time.
type TimeSeekRequest struct {
	StreamIndex int
	Timestamp   int64
	Flags       int
}

// MetadataRequest asks for metadata newly observed on the session since
// the last request.
type MetadataRequest struct{}

// ReconnectRequest tears the session down and reopens it with the
// original URL, mode, options and interrupt callback.
type ReconnectRequest struct{}

func (SizeRequest) controlRequest()      {}
func (TimeSeekRequest) controlRequest()  {}
func (MetadataRequest) controlRequest()  {}
func (ReconnectRequest) controlRequest() {}

// ControlResponse is the success value of a control operation.
type ControlResponse interface{ controlResponse() }

// SizeResponse carries the session size in bytes.
type SizeResponse struct{ Size int64 }

// TimeSeekResponse carries the byte offset the session landed on.
type TimeSeekResponse struct{ Offset int64 }

// MetadataResponse carries the tags extracted from the session.
type MetadataResponse struct{ Tags *Tags }

// ReconnectResponse reports a completed reconnect.
type ReconnectResponse struct{}

func (SizeResponse) controlResponse()      {}
func (TimeSeekResponse) controlResponse()  {}
func (MetadataResponse) controlResponse()  {}
func (ReconnectResponse) controlResponse() {}

// Control dispatches a control operation. ErrUnsupported means the
// operation has no meaning for this session, which callers treat as a
// capability probe coming back negative rather than a failure.
// Operations other than reconnect need a live session and report
// ErrNoSession without one.
func (s *Stream) Control(req ControlRequest) (ControlResponse, error) {
	if s.handle == nil {
		if _, ok := req.(ReconnectRequest); !ok {
			return nil, ErrNoSession
		}
	}

	switch r := req.(type) {
	case SizeRequest:
		size, err := s.handle.Size()
		if err != nil || size < 0 {
			return nil, ErrUnsupported
		}
		return SizeResponse{Size: size}, nil

	case TimeSeekRequest:
		off, err := s.handle.SeekTime(r.StreamIndex, r.Timestamp, r.Flags)
		if err != nil || off < 0 {
			return nil, ErrUnsupported
		}
		return TimeSeekResponse{Offset: off}, nil

	case MetadataRequest:
		tags := readICYTags(s.handle)
		if tags == nil {
			return nil, ErrUnsupported
		}
		return MetadataResponse{Tags: tags}, nil

	case ReconnectRequest:
		// Write sessions would lose buffered state on reopen.
		if s.handle != nil && s.Mode == ModeWrite {
			return nil, ErrUnsupported
		}
		if s.handle != nil {
			s.handle.Close()
			s.handle = nil
		}
		if err := s.open(context.Background()); err != nil {
			return nil, err
		}
		return ReconnectResponse{}, nil

	default:
		return nil, ErrUnsupported
	}
}

// Size reports the total byte size of the session.
func (s *Stream) Size() (int64, error) {
	resp, err := s.Control(SizeRequest{})
	if err != nil {
		return 0, err
	}
	return resp.(SizeResponse).Size, nil
}

// SeekTime repositions the session by media timestamp.
func (s *Stream) SeekTime(streamIndex int, timestamp int64, flags int) error {
	_, err := s.Control(TimeSeekRequest{
		StreamIndex: streamIndex,
		Timestamp:   timestamp,
		Flags:       flags,
	})
	return err
}

// Metadata returns tags newly observed on the session, or ErrUnsupported
// when there is nothing new.
func (s *Stream) Metadata() (*Tags, error) {
	resp, err := s.Control(MetadataRequest{})
	if err != nil {
		return nil, err
	}
	return resp.(MetadataResponse).Tags, nil
}

// Reconnect closes the session and reopens it in place. The rebuilt
// descriptor replaces the old one; on failure the stream is left with no
// session and the error is the reopened attempt's open failure.
func (s *Stream) Reconnect() error {
	_, err := s.Control(ReconnectRequest{})
	return err
}
