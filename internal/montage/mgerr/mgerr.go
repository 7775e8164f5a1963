// Package mgerr defines the four error kinds the core distinguishes
// (Validation, Transient, PerChunkTerminal, PerVideoTerminal) as
// sentinel-wrapped errors, in the shape of the teacher's apierr package, so
// callers can errors.Is/errors.As instead of string-matching.
package mgerr

import (
	"errors"
	"fmt"

	"github.com/reelsheet/montage-core/internal/platform/apierr"
)

// Kind classifies an error for orchestrator handling: whether it aborts
// immediately, retries in place, fails one chunk, or fails the whole video.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindTransient        Kind = "transient"
	KindPerChunkTerminal Kind = "per_chunk_terminal"
	KindPerVideoTerminal Kind = "per_video_terminal"
)

// Sentinel base errors. Wrap one of these with fmt.Errorf("...: %w", ...) to
// preserve both the kind (via errors.Is) and caller-specific detail.
var (
	ErrMissingField        = errors.New("missing required field")
	ErrInvalidTimecode     = errors.New("invalid timecode")
	ErrUnsupportedDuration = errors.New("unsupported video duration")

	ErrAnalyzerTransient = errors.New("analyzer temporarily unavailable")
	ErrStorageRateLimit  = errors.New("storage rate limited")
	ErrNetworkTransient  = errors.New("transient network error")

	ErrChunkParseEmpty   = errors.New("response parsed to zero entries")
	ErrChunkNoStorageURL = errors.New("chunk has no storage url")
	ErrAnalyzerFailed    = errors.New("analyzer prediction failed or canceled")

	ErrDetectorUnavailable  = errors.New("shot detector unavailable and no fallback possible")
	ErrProgressUnreadable   = errors.New("progress document unreadable")
	ErrSheetCreateImpossible = errors.New("sheet creation impossible")

	// ErrConcurrentTransition marks a chunk status transition that aborted
	// because the chunk's prior status no longer matched what the caller
	// expected -- another worker already moved it (§4.10).
	ErrConcurrentTransition = errors.New("chunk status transition aborted: concurrent update")
)

// Error pairs a Kind with the wrapped cause, carrying the chunk index when
// the failure is scoped to one chunk.
type Error struct {
	Kind       Kind
	ChunkIndex int // -1 when not chunk-scoped
	Err        error
}

func (e *Error) Error() string {
	if e.ChunkIndex >= 0 {
		return fmt.Sprintf("%s (chunk %d): %v", e.Kind, e.ChunkIndex, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, chunkIndex int, err error) *Error {
	return &Error{Kind: kind, ChunkIndex: chunkIndex, Err: err}
}

func Validation(err error) *Error        { return New(KindValidation, -1, err) }
func Transient(chunk int, err error) *Error        { return New(KindTransient, chunk, err) }
func PerChunkTerminal(chunk int, err error) *Error { return New(KindPerChunkTerminal, chunk, err) }
func PerVideoTerminal(err error) *Error            { return New(KindPerVideoTerminal, -1, err) }

// IsKind reports whether err (or anything it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind == k
	}
	return false
}

// ToAPIError maps a mgerr.Error onto the teacher's HTTP-status-carrying
// error type, for handlers that need to respond over HTTP (§6 entry points).
func ToAPIError(err error) *apierr.Error {
	var me *Error
	if !errors.As(err, &me) {
		return apierr.New(500, "internal_error", err)
	}
	switch me.Kind {
	case KindValidation:
		return apierr.New(400, "validation_error", me)
	case KindTransient:
		return apierr.New(503, "transient_error", me)
	case KindPerChunkTerminal:
		return apierr.New(422, "chunk_failed", me)
	case KindPerVideoTerminal:
		return apierr.New(500, "video_failed", me)
	default:
		return apierr.New(500, "internal_error", me)
	}
}
