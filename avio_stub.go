//go:build (!darwin && !linux) || noavio

package streamio

import (
	"context"
	"errors"
	"fmt"
)

var errAvioUnavailable = errors.New("avio backend not available in this build")

// IsAvioAvailable reports whether the FFmpeg libraries could be loaded.
func IsAvioAvailable() bool { return false }

// NewAvioBackend returns a backend that serves every URL through the
// native avio layer, bypassing the registered Go protocol handlers.
func NewAvioBackend() (Backend, error) {
	return nil, errAvioUnavailable
}

func avioOpenHandle(_ context.Context, req OpenRequest) (Handle, error) {
	return nil, fmt.Errorf("%s: %w", urlScheme(req.URL), ErrProtocolNotFound)
}
