package lsm

// Entry is the logical record (user_key, value, tranc_id). An empty Value
// denotes a tombstone. A TrancID of 0 means "no transaction context" and
// disables visibility filtering for that entry.
type Entry struct {
	Key     []byte
	Value   []byte
	TrancID uint64
}

// IsTombstone reports whether this entry represents a deletion.
func (e Entry) IsTombstone() bool {
	return len(e.Value) == 0
}

// SkipListCursor is a read-only walk over skip-list nodes starting at a
// given node, used wherever the spec calls for a "cursor" result from a
// skip-list lookup or iteration entry point.
type SkipListCursor struct {
	node *skipListNode
}

func newSkipListCursor(n *skipListNode) SkipListCursor {
	return SkipListCursor{node: n}
}

// IsValid reports whether the cursor currently references a node.
func (c SkipListCursor) IsValid() bool {
	return c.node != nil
}

// Key returns the current node's key. Only valid when IsValid().
func (c SkipListCursor) Key() []byte {
	return c.node.key
}

// Value returns the current node's value. Only valid when IsValid().
func (c SkipListCursor) Value() []byte {
	return c.node.value
}

// TrancID returns the current node's transaction id. Only valid when IsValid().
func (c SkipListCursor) TrancID() uint64 {
	return c.node.trancID
}

// Advance moves the cursor to the next node in key order.
func (c SkipListCursor) Advance() SkipListCursor {
	return newSkipListCursor(c.node.forward[0])
}
