// internal/eventlistener/seen.go
package eventlistener

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

// seenSet remembers the last capacity signatures; older ones are forgotten
// in insertion order.
type seenSet struct {
	mu    sync.Mutex
	items map[solana.Signature]struct{}
	ring  []solana.Signature
	next  int
}

func newSeenSet(capacity int) *seenSet {
	if capacity <= 0 {
		capacity = 4096
	}
	return &seenSet{
		items: make(map[solana.Signature]struct{}, capacity),
		ring:  make([]solana.Signature, 0, capacity),
	}
}

// Add records sig and reports whether it was new.
func (s *seenSet) Add(sig solana.Signature) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[sig]; ok {
		return false
	}
	if len(s.ring) < cap(s.ring) {
		s.ring = append(s.ring, sig)
	} else {
		delete(s.items, s.ring[s.next])
		s.ring[s.next] = sig
		s.next = (s.next + 1) % len(s.ring)
	}
	s.items[sig] = struct{}{}
	return true
}

func (s *seenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
