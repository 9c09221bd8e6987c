package lsm

// Iterator is the uniform forward-only, single-pass cursor contract
// shared by every iterator variant in this package. A cursor remains
// valid only while whatever locks were held at construction are still
// held by the caller.
type Iterator interface {
	// Advance moves to the next visible entry. Calling Advance on an
	// iterator that IsEnd is a no-op.
	Advance() error

	// Current returns the key and value at the current position. Only
	// meaningful when IsValid.
	Current() (key, value []byte)

	// TrancID returns the tranc_id of the current entry.
	TrancID() uint64

	// IsValid reports whether Current currently refers to a live entry.
	IsValid() bool

	// IsEnd reports whether the iterator has been exhausted.
	IsEnd() bool
}
