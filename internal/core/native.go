// SPDX-License-Identifier: MIT

//go:build darwin || freebsd || linux

package core

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// DefaultSymbol is the export looked up in a native core library:
//
//	void spectral_transform(float *left, size_t left_len,
//	                        float *right, size_t right_len,
//	                        float *freqs, size_t freqs_len,
//	                        float *db, size_t db_len,
//	                        float *pan, size_t pan_len,
//	                        const float *sample_rate);
//
// Every argument is a pointer or a length, so the call goes through
// purego.SyscallN without reflection and does not allocate.
const DefaultSymbol = "spectral_transform"

// NativeLoader loads a numeric core from a shared library with dlopen. No
// cgo is involved; the call goes through purego.
type NativeLoader struct {
	Path   string
	Symbol string // DefaultSymbol when empty
}

// Load opens the library and resolves the transform export. A library that
// loads but lacks the export is reported as ErrMissingExport.
func (l NativeLoader) Load(ctx context.Context) (Core, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Path == "" {
		return nil, fmt.Errorf("%w: no library path", ErrLibrary)
	}

	symbol := l.Symbol
	if symbol == "" {
		symbol = DefaultSymbol
	}

	lib, err := purego.Dlopen(l.Path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLibrary, l.Path, err)
	}

	sym, err := purego.Dlsym(lib, symbol)
	if err != nil || sym == 0 {
		purego.Dlclose(lib)
		return nil, fmt.Errorf("%w: %s in %s", ErrMissingExport, symbol, l.Path)
	}

	return &Native{lib: lib, fn: sym, name: fmt.Sprintf("native:%s#%s", l.Path, symbol)}, nil
}

// Native is a core implemented in a shared library. The library receives
// raw pointers into the region; it must not keep them after returning.
type Native struct {
	lib  uintptr
	fn   uintptr
	name string
	once sync.Once

	// sampleRate is passed by address; it lives as long as the core.
	sampleRate float32
}

// Name identifies the core in logs.
func (n *Native) Name() string { return n.name }

// Transform implements Core. The arguments are validated before any
// pointer crosses the boundary.
func (n *Native) Transform(mem []float32, args Args) error {
	if err := args.Validate(len(mem)); err != nil {
		return err
	}
	n.sampleRate = args.SampleRate
	purego.SyscallN(n.fn,
		uintptr(unsafe.Pointer(&mem[args.Left.Offset])), uintptr(args.Left.Len),
		uintptr(unsafe.Pointer(&mem[args.Right.Offset])), uintptr(args.Right.Len),
		uintptr(unsafe.Pointer(&mem[args.Frequencies.Offset])), uintptr(args.Frequencies.Len),
		uintptr(unsafe.Pointer(&mem[args.DBLevels.Offset])), uintptr(args.DBLevels.Len),
		uintptr(unsafe.Pointer(&mem[args.PanAngles.Offset])), uintptr(args.PanAngles.Len),
		uintptr(unsafe.Pointer(&n.sampleRate)),
	)
	return nil
}

// Close unloads the library. It is safe to call more than once; the core
// must not be used afterwards.
func (n *Native) Close() error {
	var err error
	n.once.Do(func() {
		err = purego.Dlclose(n.lib)
	})
	return err
}
