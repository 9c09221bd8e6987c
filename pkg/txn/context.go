package txn

import "github.com/duskdb/duskdb/pkg/wal"

// IsolationLevel selects the visibility and conflict-detection rules a
// transaction runs under.
type IsolationLevel int

const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
	// Serializable is treated identically to RepeatableRead: both pin a
	// snapshot at begin and detect write-write conflicts at commit time.
	Serializable
)

func (l IsolationLevel) String() string {
	switch l {
	case ReadUncommitted:
		return "read_uncommitted"
	case ReadCommitted:
		return "read_committed"
	case RepeatableRead:
		return "repeatable_read"
	case Serializable:
		return "serializable"
	default:
		return "unknown"
	}
}

// State is a transaction context's lifecycle state.
type State int

const (
	Active State = iota
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// tempWrite is one buffered, not-yet-applied write.
type tempWrite struct {
	Key       []byte
	Value     []byte
	Tombstone bool
}

// readSetEntry memoizes one RepeatableRead/Serializable read so the
// transaction keeps observing its own snapshot even if a later read
// races a concurrent commit.
type readSetEntry struct {
	Value   []byte
	TrancID uint64
	Found   bool
}

// rollbackEntry captures a ReadUncommitted write's pre-image, so abort
// can restore it.
type rollbackEntry struct {
	Value []byte
	Found bool
}

// TxContext is one in-flight transaction: its allocated tranc_id,
// isolation level, buffered WAL records, and isolation-specific
// bookkeeping (temp_writes, read_set, rollback_map). Owned by the
// Manager for the transaction's lifetime; callers interact with it only
// through Manager methods, which serialize access to its mutable state.
type TxContext struct {
	TrancID    uint64
	Isolation  IsolationLevel
	State      State
	operations []wal.Record

	tempWrites map[string]tempWrite
	tempOrder  []string

	readSet map[string]readSetEntry

	rollbackMap map[string]rollbackEntry
}

func newTxContext(trancID uint64, isolation IsolationLevel) *TxContext {
	return &TxContext{
		TrancID:     trancID,
		Isolation:   isolation,
		State:       Active,
		operations:  []wal.Record{{Kind: wal.KindBegin, TrancID: trancID}},
		tempWrites:  make(map[string]tempWrite),
		readSet:     make(map[string]readSetEntry),
		rollbackMap: make(map[string]rollbackEntry),
	}
}
