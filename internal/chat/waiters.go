package chat

import (
	"context"
	"sync"
	"time"
)

// Waiters fans incoming messages out to goroutines blocked in Wait.
//
// Each sign-up conversation waits on its own predicate; the gateway's message
// handler calls Dispatch for every message. A waiter receives at most one
// message and is removed as soon as it has it, so a slow conversation never
// blocks the dispatcher or any other conversation.
type Waiters struct {
	mu      sync.Mutex
	next    uint64
	waiting map[uint64]*waiter
}

type waiter struct {
	match func(Message) bool
	ch    chan Message
}

// NewWaiters creates an empty hub.
func NewWaiters() *Waiters {
	return &Waiters{waiting: make(map[uint64]*waiter)}
}

// Wait blocks until Dispatch delivers a message satisfying match, timeout
// elapses (ErrTimeout) or ctx is done (ctx.Err()).
func (w *Waiters) Wait(ctx context.Context, match func(Message) bool, timeout time.Duration) (*Message, error) {
	wt := &waiter{match: match, ch: make(chan Message, 1)}

	w.mu.Lock()
	id := w.next
	w.next++
	w.waiting[id] = wt
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.waiting, id)
		w.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m := <-wt.ch:
		return &m, nil
	case <-timer.C:
		// A message may have landed between the timer firing and now.
		select {
		case m := <-wt.ch:
			return &m, nil
		default:
		}
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dispatch hands m to every waiter whose predicate accepts it and returns how
// many received it.
func (w *Waiters) Dispatch(m Message) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	delivered := 0
	for id, wt := range w.waiting {
		if !wt.match(m) {
			continue
		}
		wt.ch <- m // buffered(1) and removed below, so this never blocks
		delete(w.waiting, id)
		delivered++
	}
	return delivered
}

// Len reports how many goroutines are currently waiting.
func (w *Waiters) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.waiting)
}
