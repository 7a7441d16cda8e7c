package ctclient

import (
	"fmt"

	ct "github.com/google/certificate-transparency-go"
)

// Kind identifies the category of an *Error, mirroring the error taxonomy
// used throughout this package's state machine.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindFileIO
	KindNetIO
	KindInvalidSignature
	KindInvalidResponseStatus
	KindMalformedResponseBody
	KindInvalidConsistencyProof
	KindCannotVerifyTreeData
	KindBadCertificate
	KindInvalidInclusionProof
	KindBadSct
	KindExpectedEntry
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindFileIO:
		return "file I/O error"
	case KindNetIO:
		return "network I/O error"
	case KindInvalidSignature:
		return "invalid signature"
	case KindInvalidResponseStatus:
		return "invalid response status"
	case KindMalformedResponseBody:
		return "malformed response body"
	case KindInvalidConsistencyProof:
		return "invalid consistency proof"
	case KindCannotVerifyTreeData:
		return "cannot verify tree data"
	case KindBadCertificate:
		return "bad certificate"
	case KindInvalidInclusionProof:
		return "invalid inclusion proof"
	case KindBadSct:
		return "bad SCT"
	case KindExpectedEntry:
		return "expected log entry"
	default:
		return "unknown error"
	}
}

// Error is the error type returned by every operation in this package. It
// carries enough structured detail to let callers distinguish a transient
// network hiccup from an unrecoverable proof-of-misbehavior.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error

	Path       string // set when Kind == KindFileIO
	StatusCode int    // set when Kind == KindInvalidResponseStatus

	PrevSize, NewSize uint64 // set when Kind == KindInvalidConsistencyProof
	TreeSize          uint64 // set when Kind == KindInvalidInclusionProof
	LeafIndex         uint64 // set when Kind == KindInvalidInclusionProof
	EntryIndex        uint64 // set when Kind == KindExpectedEntry
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindFileIO:
		return fmt.Sprintf("file I/O error on %q: %s", e.Path, e.msgOrCause())
	case KindInvalidResponseStatus:
		return fmt.Sprintf("invalid response status %d: %s", e.StatusCode, e.msgOrCause())
	case KindInvalidConsistencyProof:
		return fmt.Sprintf("invalid consistency proof from size %d to %d: %s", e.PrevSize, e.NewSize, e.msgOrCause())
	case KindInvalidInclusionProof:
		return fmt.Sprintf("invalid inclusion proof for leaf %d in tree of size %d: %s", e.LeafIndex, e.TreeSize, e.msgOrCause())
	case KindExpectedEntry:
		return fmt.Sprintf("expected log entry at index %d: %s", e.EntryIndex, e.msgOrCause())
	default:
		if e.Msg == "" && e.Cause != nil {
			return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.msgOrCause())
	}
}

func (e *Error) msgOrCause() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return ""
}

func (e *Error) Unwrap() error { return e.Cause }

func errInvalidArgument(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

func errFileIO(path string, cause error) *Error {
	return &Error{Kind: KindFileIO, Path: path, Cause: cause}
}

func errNetIO(cause error) *Error {
	return &Error{Kind: KindNetIO, Cause: cause}
}

func errInvalidSignature(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidSignature, Msg: fmt.Sprintf(format, args...)}
}

func errInvalidResponseStatus(status int, cause error) *Error {
	return &Error{Kind: KindInvalidResponseStatus, StatusCode: status, Cause: cause}
}

func errMalformedResponseBody(format string, args ...interface{}) *Error {
	return &Error{Kind: KindMalformedResponseBody, Msg: fmt.Sprintf(format, args...)}
}

func errInvalidConsistencyProof(prevSize, newSize uint64, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidConsistencyProof, PrevSize: prevSize, NewSize: newSize, Msg: fmt.Sprintf(format, args...)}
}

func errCannotVerifyTreeData(format string, args ...interface{}) *Error {
	return &Error{Kind: KindCannotVerifyTreeData, Msg: fmt.Sprintf(format, args...)}
}

func errBadCertificate(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBadCertificate, Msg: fmt.Sprintf(format, args...)}
}

func errInvalidInclusionProof(treeSize, leafIndex uint64, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidInclusionProof, TreeSize: treeSize, LeafIndex: leafIndex, Msg: fmt.Sprintf(format, args...)}
}

func errBadSct(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBadSct, Msg: fmt.Sprintf(format, args...)}
}

func errExpectedEntry(index uint64) *Error {
	return &Error{Kind: KindExpectedEntry, EntryIndex: index}
}

// STHError wraps an *Error with the log's signed tree head when the failure
// happened after that tree head's signature had already verified (e.g. a
// new tree that turned out to conflict only on the leaf-recomputation step),
// so the caller can keep the signed tree head as evidence. A tree head whose
// signature fails is not attached. Use errors.As to recover it.
type STHError struct {
	Err error
	STH *ct.SignedTreeHead
}

func (e *STHError) Error() string { return e.Err.Error() }
func (e *STHError) Unwrap() error { return e.Err }

func withSTH(err error, sth *ct.SignedTreeHead) error {
	if err == nil {
		return nil
	}
	return &STHError{Err: err, STH: sth}
}
