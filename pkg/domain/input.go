package domain

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// DefaultMaxInputSize bounds RawInput.Text at the service edges (256 KiB).
const DefaultMaxInputSize = 256 << 10

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Validate rejects text longer than limit bytes or not valid UTF-8.
// A limit of zero or less disables the size check.
// The text is never rewritten; callers reject rather than truncate.
func (in RawInput) Validate(limit int) error {
	if limit > 0 && len(in.Text) > limit {
		return fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(in.Text), limit)
	}
	if !utf8.ValidString(in.Text) {
		return ErrInvalidUTF8
	}
	return nil
}
