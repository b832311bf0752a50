package types

import "errors"

// Error kinds surfaced to callers of user-initiated operations.
// Errors inside the audio loop are logged and suppressed instead;
// propagating them would glitch the stream.
var (
	ErrTrackNotFound       = errors.New("track not found")
	ErrEntityNotFound      = errors.New("entity not found")
	ErrPatternNotFound     = errors.New("pattern not found")
	ErrArrangementNotFound = errors.New("arrangement not found")

	// ErrOverlap means an arrangement would intersect an existing one
	// on the same track.
	ErrOverlap = errors.New("arrangement would overlap")

	// ErrPositionOutOfBounds means an entity or track move named a
	// position past the end of its list.
	ErrPositionOutOfBounds = errors.New("position out of bounds")

	// ErrUnknownControlTarget means an automation link named a uid
	// that doesn't resolve to anything controllable.
	ErrUnknownControlTarget = errors.New("unknown control target")
)
