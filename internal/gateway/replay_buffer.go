package gateway

import "sync"

// BufferedEnvelope is one broadcast alert frame retained for catch-up:
// the sequence number, the symbol it concerns, and the wire bytes exactly
// as originally pushed.
type BufferedEnvelope struct {
	Seq    int64
	Symbol string
	Data   []byte
}

// ReplayBuffer retains the most recent alert envelopes in a fixed ring so
// clients that notice a sequence gap can backfill, optionally for a
// single symbol. Overwrites the oldest envelope when full.
//
// Thread-safe for concurrent writes and reads.
type ReplayBuffer struct {
	mu   sync.RWMutex
	ring []BufferedEnvelope
	next int // next write position
	full bool
}

// NewReplayBuffer creates a replay buffer with the given capacity.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 500
	}
	return &ReplayBuffer{ring: make([]BufferedEnvelope, capacity)}
}

// Push retains one envelope. The data bytes are copied; the hub reuses
// its marshal buffer after broadcasting.
func (rb *ReplayBuffer) Push(seq int64, symbol string, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)

	rb.mu.Lock()
	rb.ring[rb.next] = BufferedEnvelope{Seq: seq, Symbol: symbol, Data: cp}
	rb.next++
	if rb.next == len(rb.ring) {
		rb.next = 0
		rb.full = true
	}
	rb.mu.Unlock()
}

// Range returns the retained envelopes with seq in [fromSeq, toSeq] in
// sequence order. An empty symbol matches every symbol.
func (rb *ReplayBuffer) Range(fromSeq, toSeq int64, symbol string) []BufferedEnvelope {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	oldest := 0
	if rb.full {
		oldest = rb.next
	}

	var out []BufferedEnvelope
	for i := 0; i < rb.len(); i++ {
		e := rb.ring[(oldest+i)%len(rb.ring)]
		if e.Seq < fromSeq || e.Seq > toSeq {
			continue
		}
		if symbol != "" && e.Symbol != symbol {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Len returns the number of envelopes currently retained.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.len()
}

func (rb *ReplayBuffer) len() int {
	if rb.full {
		return len(rb.ring)
	}
	return rb.next
}
