package y

// Iterator is the capability every cursor in this module implements: block
// iterators, the two-level table iterator, the merging iterator and the DB
// iterator. Unlike a forward-only cursor, Prev and SeekToLast are first
// class: the merging and DB iterators both need to reverse direction
// without rebuilding their children from scratch (see table.MergingIterator
// and the DBIterator direction state machine).
type Iterator interface {
	// Valid reports whether the iterator is positioned at an entry.
	Valid() bool
	// Key returns the current key. Only valid when Valid() is true. The
	// returned slice may be invalidated by the next positioning call.
	Key() []byte
	// Value returns the current value, under the same validity rule as Key.
	Value() []byte

	Next()
	Prev()
	Seek(target []byte)
	SeekToFirst()
	SeekToLast()

	// Error returns the first error latched by this iterator, or nil. An
	// iterator that has latched an error is permanently invalid.
	Error() error

	// Close releases resources (cache handles, open blocks) held by this
	// iterator and, transitively, its children. Safe to call more than
	// once.
	Close() error
}
