package mosaic

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a per-asset failure.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindTimeout
	KindDecode
	KindNotFound
	KindDimension
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindDecode:
		return "decode"
	case KindNotFound:
		return "not-found"
	case KindDimension:
		return "dimension-mismatch"
	}
	return "generic"
}

// AssetError is the failure of a single asset read. It never aborts an
// assembly on its own: the assembler records it and moves on.
type AssetError struct {
	Asset string
	Kind  ErrorKind
	Err   error
}

func (e *AssetError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("asset %s: %s", e.Asset, e.Kind)
	}
	return fmt.Sprintf("asset %s: %s: %v", e.Asset, e.Kind, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

// NoValidAssetsError is returned by Assemble when not a single asset
// contributed a usable pixel. It carries the individual failures so the
// caller can tell a timeout storm from a hole in the archive.
type NoValidAssetsError struct {
	Failures []*AssetError
}

func (e *NoValidAssetsError) Error() string {
	if len(e.Failures) == 0 {
		return "mosaic: no asset contributed valid pixels"
	}
	kinds := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		kinds[i] = f.Kind.String()
	}
	return fmt.Sprintf("mosaic: no asset contributed valid pixels (%d failures: %s)",
		len(e.Failures), strings.Join(kinds, ", "))
}

// ConfigError reports invalid assembly configuration, such as a worker
// count below one or an unknown strategy name.
type ConfigError string

func (e ConfigError) Error() string { return "mosaic: " + string(e) }
