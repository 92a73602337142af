package wsengine

import (
	"sync"

	"github.com/eapache/queue"
)

// slotQueue is the free-list of idle session indices. It replaces a
// scan of the pool on every accept.
type slotQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newSlotQueue(n int) *slotQueue {
	s := &slotQueue{q: queue.New()}
	for i := 0; i < n; i++ {
		s.q.Add(i)
	}
	return s
}

func (s *slotQueue) push(i int) {
	s.mu.Lock()
	s.q.Add(i)
	s.mu.Unlock()
}

func (s *slotQueue) pop() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.q.Length() == 0 {
		return 0, false
	}
	return s.q.Remove().(int), true
}

func (s *slotQueue) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Length()
}
