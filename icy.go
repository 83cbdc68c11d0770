package streamio

import "strings"

const (
	// icySentinel marks an ICY metadata packet as already delivered. The
	// extractor writes it back into the session after reading a packet, so
	// the next poll reports nothing until the backend stores a new one.
	icySentinel = "-"

	icyTitleMarker = "StreamTitle='"
)

// readICYTags extracts ICY metadata from the session's introspection
// properties. It returns nil when there is nothing new: both properties
// empty, or the packet still holding the sentinel from the previous call.
// Otherwise it builds a fresh tag set from the response headers, pulls the
// stream title out of the packet, and stamps the sentinel so the same
// packet is not reported twice.
func readICYTags(h Handle) *Tags {
	if h == nil {
		return nil
	}
	headers, _ := h.Property(PropICYHeaders)
	packet, _ := h.Property(PropICYPacket)

	if headers == "" && packet == "" {
		return nil
	}
	if packet == icySentinel {
		return nil
	}

	tags := NewTags()

	for rest := headers; rest != ""; {
		var line string
		line, rest = cutLine(rest)
		if name, val, ok := strings.Cut(line, ": "); ok {
			tags.Set(name, val)
		}
	}

	if i := strings.Index(packet, icyTitleMarker); i >= 0 {
		title := packet[i+len(icyTitleMarker):]
		// No closing quote: take the rest of the packet.
		if end := strings.IndexByte(title, '\''); end >= 0 {
			title = title[:end]
		}
		tags.Set("icy-title", title)
	}

	h.SetProperty(PropICYPacket, icySentinel)
	return tags
}

// cutLine splits off the first line of s. The terminating LF or CRLF is
// removed from the line; an unterminated final fragment is returned as is.
func cutLine(s string) (line, rest string) {
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return s, ""
	}
	return strings.TrimSuffix(s[:i], "\r"), s[i+1:]
}
