package rdb

import "fmt"

// ErrorKind enumerates the error taxonomy of spec.md §7.
type ErrorKind string

const (
	ErrIo                  ErrorKind = "io"
	ErrMagicMismatch       ErrorKind = "magic_mismatch"
	ErrUnsupportedVersion  ErrorKind = "unsupported_version"
	ErrBadLengthPrefix     ErrorKind = "bad_length_prefix"
	ErrBadEncoding         ErrorKind = "bad_encoding"
	ErrBadLzf              ErrorKind = "bad_lzf"
	ErrSizeCeilingExceeded ErrorKind = "size_ceiling_exceeded"
	ErrUnexpectedEof       ErrorKind = "unexpected_eof"
	ErrModuleSkipped       ErrorKind = "module_skipped"
	ErrStreamSummarised    ErrorKind = "stream_summarised"
)

// Warning is one non-fatal event recorded on SnapshotResult.Warnings.
type Warning struct {
	Kind ErrorKind
	// Key is the key this warning pertains to, if any (empty for
	// snapshot-level warnings such as a checksum mismatch).
	Key string
	Msg string
}

func (w Warning) String() string {
	if w.Key == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Msg)
	}
	return fmt.Sprintf("%s (key %q): %s", w.Kind, w.Key, w.Msg)
}

// decodeError is the internal error type every decode helper in this
// package returns on a structural problem. resync reports whether the
// caller's cursor position is still known after the error — i.e. whether
// the top-level driver may drop the current key and keep reading at the
// next opcode (spec.md §4.5, §7), rather than aborting the whole pass.
type decodeError struct {
	kind   ErrorKind
	msg    string
	resync bool
}

func (e *decodeError) Error() string { return string(e.kind) + ": " + e.msg }

func newDecodeError(kind ErrorKind, msg string) *decodeError {
	return &decodeError{kind: kind, msg: msg}
}

func newResyncError(kind ErrorKind, msg string) *decodeError {
	return &decodeError{kind: kind, msg: msg, resync: true}
}

// asDecodeError extracts the decodeError carried by err, if any.
func asDecodeError(err error) (*decodeError, bool) {
	de, ok := err.(*decodeError)
	return de, ok
}

// isAlwaysFatal reports whether kind is always fatal at top level
// regardless of whether the position is known, per spec.md §7:
// "Io, MagicMismatch, UnexpectedEof, and BadLzf at top level are fatal."
func isAlwaysFatal(kind ErrorKind) bool {
	switch kind {
	case ErrIo, ErrMagicMismatch, ErrUnexpectedEof, ErrBadLzf:
		return true
	default:
		return false
	}
}
