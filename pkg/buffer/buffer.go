package buffer

// Buffer is the queue contract, parameterized by item type.
type Buffer[T any] interface {
	// Write adds an item. What happens at capacity depends on the
	// overflow policy.
	Write(item T) error

	// Read removes and returns one item, reporting false when empty.
	Read() (T, bool)

	// ReadBatch removes and returns up to max items. The result may be
	// shorter than max.
	ReadBatch(max int) []T

	// Peek returns the next item without removing it, reporting false
	// when empty.
	Peek() (T, bool)

	// Size returns the current number of buffered items.
	Size() int

	// Capacity returns the maximum number of items the buffer holds.
	Capacity() int

	// IsFull reports whether the buffer is at capacity.
	IsFull() bool

	// IsEmpty reports whether the buffer holds no items.
	IsEmpty() bool

	// Clear removes all buffered items.
	Clear()

	// Stats returns the buffer's running statistics.
	Stats() *Statistics

	// Close shuts the buffer down. Writes after Close fail.
	Close() error
}

// OverflowPolicy defines the behavior of Write on a full buffer.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest item to admit the new one. Event
	// queues use this: fresher state beats older state.
	DropOldest OverflowPolicy = iota

	// DropNewest rejects the incoming item when full.
	DropNewest

	// Block makes Write wait until space frees up.
	Block
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	case Block:
		return "Block"
	default:
		return "Unknown"
	}
}

// DropCallback is invoked with each item the overflow policy discards.
type DropCallback[T any] func(item T)

// NewCircularBuffer creates a circular buffer with the given capacity.
// All other configuration is via functional options; the only error path
// is metrics registration when WithMetrics is requested.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newCircularBuffer(capacity, opts)
}
