package mqtt

import "sync"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO that keeps the newest messages while
// disconnected. Not safe for concurrent use; the caller must synchronize.
type ringBuffer struct {
	buf   []bufferedMsg
	head  int // next write position
	count int
	// dropped counts messages overwritten since the last drain.
	dropped int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{buf: make([]bufferedMsg, capacity)}
}

// push appends msg, overwriting the oldest entry when full.
// Returns true when this push caused the first drop since the last drain.
func (r *ringBuffer) push(msg bufferedMsg) bool {
	capacity := len(r.buf)
	r.buf[r.head] = msg
	r.head = (r.head + 1) % capacity
	if r.count < capacity {
		r.count++
		return false
	}
	r.dropped++
	return r.dropped == 1
}

// drainAll returns buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}

	capacity := len(r.buf)
	out := make([]bufferedMsg, 0, r.count)
	start := (r.head - r.count + capacity) % capacity
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%capacity])
	}

	r.head, r.count, r.dropped = 0, 0, 0
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}

// offlineQueue holds messages while the broker connection is down. The
// connection check and the push share one lock with drain, so a message
// cannot be left behind by a reconnect that drained just before it.
type offlineQueue struct {
	mu  sync.Mutex
	buf *ringBuffer
}

func newOfflineQueue(capacity int) *offlineQueue {
	return &offlineQueue{buf: newRingBuffer(capacity)}
}

// hold buffers msg unless connected reports true. held is false when the
// caller should send msg itself.
func (q *offlineQueue) hold(msg bufferedMsg, connected func() bool) (held, firstDrop bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if connected() {
		return false, false
	}
	return true, q.buf.push(msg)
}

// drain returns held messages oldest first.
func (q *offlineQueue) drain() []bufferedMsg {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.drainAll()
}
