package streamio

import "log/slog"

// Mode selects the I/O direction of a stream session.
type Mode int

const (
	ModeRead  Mode = iota // open for reading (default)
	ModeWrite             // open for writing
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	default:
		return "unknown"
	}
}

// DefaultUserAgent identifies the library in outgoing requests unless the
// caller overrides Config.UserAgent.
const DefaultUserAgent = "streamio/1.0"

// Config carries the options applied when opening a stream. The zero value
// is usable; passing nil to Open means DefaultConfig(). Note that the zero
// value leaves TLS verification off, while DefaultConfig turns it on.
type Config struct {
	// Mode selects read or write access. ModeRead is the default.
	Mode Mode

	// UserAgent is sent by HTTP-like protocols. Empty means DefaultUserAgent.
	UserAgent string

	// Referrer, when set, is sent as a Referer header.
	Referrer string

	// HTTPHeaders holds extra raw header lines ("Name: value") appended to
	// the request header block.
	HTTPHeaders []string

	// CookiesFile points at a Netscape-format cookie file. Empty disables
	// cookie lookup. A file that cannot be read only logs a warning.
	CookiesFile string

	// TLSVerify enables certificate verification.
	TLSVerify bool

	// TLSCAFile optionally points at a CA bundle used for verification.
	TLSCAFile string

	// BackendOptions are raw key/value pairs appended to the option
	// dictionary after the derived entries, so they always win.
	BackendOptions []OptionPair

	// Interrupt is polled from inside blocking backend loops. Returning
	// true aborts the operation in progress. It must be fast, must not
	// block, and may be called from any goroutine or foreign thread.
	Interrupt InterruptFunc

	// Backend overrides the backend used to open sessions. Nil selects
	// DefaultBackend().
	Backend Backend

	// Logger receives debug traces and non-fatal warnings. Nil selects
	// slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the settings used when Open receives a nil config.
func DefaultConfig() *Config {
	return &Config{
		UserAgent: DefaultUserAgent,
		TLSVerify: true,
	}
}

// withDefaults returns a shallow copy with unset fields filled in.
func (c *Config) withDefaults() *Config {
	if c == nil {
		c = DefaultConfig()
	}
	out := *c
	if out.UserAgent == "" {
		out.UserAgent = DefaultUserAgent
	}
	if out.Backend == nil {
		out.Backend = DefaultBackend()
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}
