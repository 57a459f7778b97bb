// Package buffer provides thread-safe circular buffers with configurable
// overflow policies, built-in statistics, and optional Prometheus metrics.
//
// # Overview
//
// The gateway uses these buffers wherever a producer and consumer run at
// different speeds: the manager socket reader feeding the event queue, and
// the tracker feeding the NATS publish queue. Buffers are generic,
// thread-safe, and always collect statistics.
//
// # Quick Start
//
//	buf, err := buffer.NewCircularBuffer[int](1000)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = buf.Write(42)
//	value, ok := buf.Read()
//
// With overflow policy and metrics:
//
//	buf, err := buffer.NewCircularBuffer[[]byte](5000,
//		buffer.WithOverflowPolicy[[]byte](buffer.DropOldest),
//		buffer.WithMetrics[[]byte](registry, "ami_events"),
//	)
//
// # Overflow Policies
//
// Three behaviors when capacity is reached:
//
//   - DropOldest: evict the oldest item to make room (default)
//   - DropNewest: reject new items when full
//   - Block: Write waits for available space
//
// Event queues use DropOldest: when a consumer falls behind, fresher
// call state beats older state. WithDropCallback observes what was
// discarded either way.
//
// # Observability
//
// Statistics (always on):
//   - Atomic counters for writes, reads, peeks, overflows, drops
//   - Computed rates: throughput, drop rate, overflow rate
//   - Available via buf.Stats(), no external dependency
//
// Prometheus metrics (optional, via WithMetrics):
//   - callstreams_buffer_* counters and gauges with a component label
//   - The prefix distinguishes queues (ami_events, natspub_queue)
//
// The two track independently. Statistics stay available in tests and
// minimal deployments; metrics feed dashboards and alerting. The double
// increment costs on the order of nanoseconds per operation.
//
// # Thread Safety
//
// All operations are safe for concurrent producers and consumers.
// Internal state is protected by a sync.RWMutex; the Block policy
// coordinates through sync.Cond. Close wakes any blocked writers,
// whose writes then fail with ErrAlreadyStopped.
//
// # Performance Characteristics
//
//   - Write, Read, Peek: O(1)
//   - ReadBatch: O(n) in the batch size
//   - Backing array is pre-allocated; no allocations during operation
//
// # Common Use Cases
//
// Manager event queue:
//
//	eventBuffer := buffer.NewCircularBuffer[*ami.Frame](10000,
//		buffer.WithOverflowPolicy[*ami.Frame](buffer.DropOldest),
//		buffer.WithMetrics[*ami.Frame](registry, "ami_events"),
//	)
//
// Publish queue with drop logging:
//
//	sendBuffer := buffer.NewCircularBuffer[[]byte](256,
//		buffer.WithOverflowPolicy[[]byte](buffer.DropOldest),
//		buffer.WithDropCallback[[]byte](func(msg []byte) {
//			log.Warn("dropped notification for slow consumer")
//		}),
//	)
package buffer
