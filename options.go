package streamio

import (
	"log/slog"
	"strings"
)

// OptionPair is one backend option entry.
type OptionPair struct {
	Key   string
	Value string
}

// Options is an ordered backend option dictionary. Insertion order is
// preserved, keys compare case-insensitively, and setting an existing key
// replaces its value in place. Backends mark the entries they understand
// as consumed; Unused reports the rest so the adapter can warn about
// options that never took effect.
type Options struct {
	pairs []OptionPair
	used  map[string]bool
}

// NewOptions returns an empty option dictionary.
func NewOptions() *Options {
	return &Options{}
}

// Set adds key=value, replacing an existing entry in place when the key is
// already present (case-insensitive).
func (o *Options) Set(key, value string) {
	for i := range o.pairs {
		if strings.EqualFold(o.pairs[i].Key, key) {
			o.pairs[i].Value = value
			return
		}
	}
	o.pairs = append(o.pairs, OptionPair{Key: key, Value: value})
}

// Get returns the value for key and whether it is present.
func (o *Options) Get(key string) (string, bool) {
	for i := range o.pairs {
		if strings.EqualFold(o.pairs[i].Key, key) {
			return o.pairs[i].Value, true
		}
	}
	return "", false
}

// Consume returns the value for key and marks the entry as used. Backends
// call it for every option they act on.
func (o *Options) Consume(key string) (string, bool) {
	for i := range o.pairs {
		if strings.EqualFold(o.pairs[i].Key, key) {
			if o.used == nil {
				o.used = make(map[string]bool)
			}
			o.used[strings.ToLower(o.pairs[i].Key)] = true
			return o.pairs[i].Value, true
		}
	}
	return "", false
}

// MarkConsumed flags key as used without reading it.
func (o *Options) MarkConsumed(key string) {
	if o.used == nil {
		o.used = make(map[string]bool)
	}
	o.used[strings.ToLower(key)] = true
}

// Unused returns the entries no backend consumed, in insertion order.
func (o *Options) Unused() []OptionPair {
	var out []OptionPair
	for _, p := range o.pairs {
		if !o.used[strings.ToLower(p.Key)] {
			out = append(out, p)
		}
	}
	return out
}

// Pairs returns all entries in insertion order.
func (o *Options) Pairs() []OptionPair {
	out := make([]OptionPair, len(o.pairs))
	copy(out, o.pairs)
	return out
}

// Len reports the number of entries.
func (o *Options) Len() int { return len(o.pairs) }

// buildOptions assembles the backend option dictionary from cfg. Entries
// are inserted in a fixed order; user-supplied BackendOptions go last so
// they override the derived defaults while keeping the original position
// of any key they replace.
func buildOptions(cfg *Config, log *slog.Logger) *Options {
	opts := NewOptions()

	if cfg.UserAgent != "" {
		opts.Set("user-agent", cfg.UserAgent)
	}

	if cfg.CookiesFile != "" {
		path := resolveUserPath(cfg.CookiesFile)
		cookies, err := LoadCookies(path)
		if err != nil {
			log.Warn("cannot load cookies", "path", path, "error", err)
		} else if cookies != "" {
			opts.Set("cookies", cookies)
		}
	}

	if cfg.TLSVerify {
		opts.Set("tls_verify", "1")
	} else {
		opts.Set("tls_verify", "0")
	}
	if cfg.TLSCAFile != "" {
		opts.Set("ca_file", cfg.TLSCAFile)
	}

	var hdr strings.Builder
	if cfg.Referrer != "" {
		hdr.WriteString("Referer: ")
		hdr.WriteString(cfg.Referrer)
		hdr.WriteString("\r\n")
	}
	for _, h := range cfg.HTTPHeaders {
		hdr.WriteString(h)
		hdr.WriteString("\r\n")
	}
	if hdr.Len() > 0 {
		opts.Set("headers", hdr.String())
	}

	opts.Set("icy", "1")

	for _, p := range cfg.BackendOptions {
		opts.Set(p.Key, p.Value)
	}

	return opts
}
