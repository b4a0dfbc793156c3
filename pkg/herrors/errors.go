// Package herrors defines the error taxonomy shared across the storage
// engine: the kv substrate, the graph/vector/bm25 stores, and the traversal
// fabric all return errors built from this package so that a caller one
// layer up (an excluded DSL/gateway layer, in production) can type-switch
// on Kind without knowing which subsystem produced the failure.
package herrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way spec section 7 of the storage engine
// enumerates them. The gateway (out of scope here) maps Kind to an HTTP
// status class; the core itself stays transport-agnostic.
type Kind int

const (
	Unknown Kind = iota
	NodeNotFound
	EdgeNotFound
	VectorNotFound
	IndexNotFound
	DuplicateIndex
	SchemaMismatch
	SerializationError
	StorageFull
	ReadersFull
	TxnAborted
	DimensionMismatch
	DeletedVector
	InvalidWeight
	NoPath
	EmbeddingError
	Internal
)

func (k Kind) String() string {
	switch k {
	case NodeNotFound:
		return "NodeNotFound"
	case EdgeNotFound:
		return "EdgeNotFound"
	case VectorNotFound:
		return "VectorNotFound"
	case IndexNotFound:
		return "IndexNotFound"
	case DuplicateIndex:
		return "DuplicateIndex"
	case SchemaMismatch:
		return "SchemaMismatch"
	case SerializationError:
		return "SerializationError"
	case StorageFull:
		return "StorageFull"
	case ReadersFull:
		return "ReadersFull"
	case TxnAborted:
		return "TxnAborted"
	case DimensionMismatch:
		return "DimensionMismatch"
	case DeletedVector:
		return "DeletedVector"
	case InvalidWeight:
		return "InvalidWeight"
	case NoPath:
		return "NoPath"
	case EmbeddingError:
		return "EmbeddingError"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// HelixError is the concrete error type returned by the storage engine.
// It carries the Kind for programmatic dispatch plus an optional wrapped
// cause for error chains (errors.Is/errors.As both work against it).
type HelixError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *HelixError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *HelixError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, herrors.New(SomeKind, "")) match on Kind alone,
// independent of Message/Cause — callers compare against the sentinel
// values below rather than constructing their own.
func (e *HelixError) Is(target error) bool {
	other, ok := target.(*HelixError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New constructs a HelixError of the given kind.
func New(kind Kind, message string) *HelixError {
	return &HelixError{Kind: kind, Message: message}
}

// Wrap constructs a HelixError of the given kind, wrapping cause.
func Wrap(kind Kind, message string, cause error) *HelixError {
	return &HelixError{Kind: kind, Message: message, Cause: cause}
}

// Sentinel values for errors.Is comparisons, one per Kind named in spec
// section 7 except Internal, which has no sentinel. Message text doesn't
// matter for Is() — only Kind does.
var (
	ErrNodeNotFound        = New(NodeNotFound, "node not found")
	ErrEdgeNotFound        = New(EdgeNotFound, "edge not found")
	ErrVectorNotFound      = New(VectorNotFound, "vector not found")
	ErrIndexNotFound       = New(IndexNotFound, "index not found")
	ErrDuplicateIndex      = New(DuplicateIndex, "duplicate index entry")
	ErrSchemaMismatch      = New(SchemaMismatch, "schema mismatch")
	ErrSerializationError  = New(SerializationError, "serialization error")
	ErrStorageFull         = New(StorageFull, "storage full")
	ErrReadersFull         = New(ReadersFull, "readers full")
	ErrTxnAborted          = New(TxnAborted, "transaction aborted")
	ErrDimensionMismatch   = New(DimensionMismatch, "vector dimension mismatch")
	ErrDeletedVector       = New(DeletedVector, "vector is deleted")
	ErrInvalidWeight       = New(InvalidWeight, "invalid edge weight")
	ErrNoPath              = New(NoPath, "no path found")
	ErrEmbeddingError      = New(EmbeddingError, "embedding error")
)

// Of reports the Kind of err, walking the chain with errors.As.
// Returns Unknown if err is nil or not a *HelixError.
func Of(err error) Kind {
	var he *HelixError
	if errors.As(err, &he) {
		return he.Kind
	}
	return Unknown
}

// Is reports whether err's Kind matches kind, anywhere in its chain.
func Is(err error, kind Kind) bool {
	return Of(err) == kind
}
