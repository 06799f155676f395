// SPDX-License-Identifier: MIT

//go:build !(darwin || freebsd || linux)

package core

import (
	"context"
	"fmt"
	"runtime"
)

const DefaultSymbol = "spectral_transform"

// NativeLoader is unavailable on this platform; Load always fails.
type NativeLoader struct {
	Path   string
	Symbol string
}

// Load implements Loader.
func (l NativeLoader) Load(ctx context.Context) (Core, error) {
	return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, runtime.GOOS, runtime.GOARCH)
}
