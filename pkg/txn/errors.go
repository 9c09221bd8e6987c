package txn

import "errors"

var (
	// ErrTransactionAborted is returned for a Put, Remove or Get
	// attempted on a context that is no longer Active.
	ErrTransactionAborted = errors.New("txn: transaction is not active")

	// ErrDuplicateTransaction is returned when a context is committed or
	// aborted more than once.
	ErrDuplicateTransaction = errors.New("txn: transaction already finished")

	// ErrTransactionConflict names the commit-time conflict kind. Commit
	// itself reports a conflict via its bool return rather than this
	// error, per the spec's "commit returns a boolean success signal";
	// it's exported for callers that want to classify a failure by kind.
	ErrTransactionConflict = errors.New("txn: commit-time conflict")
)
