package engine

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/eapache/queue"
)

// RowStream receives the frames of one search. The engine pushes batches from
// the loop goroutine, the caller fetches them from its own goroutine.
// It implements search.Stream.
type RowStream struct {
	mu      sync.Mutex
	batches *queue.Queue // of []json.RawMessage
	notify  chan struct{}
	done    bool
	meta    []byte
	err     error
}

// NewRowStream creates an empty stream
func NewRowStream() *RowStream {
	return &RowStream{
		batches: queue.New(),
		notify:  make(chan struct{}, 1),
	}
}

// --------------------------------------------------------------------------
// Engine side
// --------------------------------------------------------------------------

func (s *RowStream) push(rows [][]byte) {
	if len(rows) == 0 {
		return
	}
	batch := make([]json.RawMessage, len(rows))
	for i, row := range rows {
		batch[i] = row
	}
	s.mu.Lock()
	s.batches.Add(batch)
	s.mu.Unlock()
	s.wake()
}

func (s *RowStream) finish(meta []byte) {
	s.mu.Lock()
	s.done = true
	s.meta = meta
	s.mu.Unlock()
	s.wake()
}

// fail ends the stream with err, batches received before stay readable
func (s *RowStream) fail(err error) {
	s.mu.Lock()
	if !s.done && s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.wake()
}

func (s *RowStream) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see search.Stream)
// --------------------------------------------------------------------------

func (s *RowStream) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	for {
		s.mu.Lock()
		if s.batches.Length() > 0 {
			batch := s.batches.Remove().([]json.RawMessage)
			s.mu.Unlock()
			return batch, nil
		}
		err, done := s.err, s.done
		s.mu.Unlock()

		if err != nil {
			return nil, err
		}
		if done {
			return nil, nil
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *RowStream) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *RowStream) Value() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		return nil
	}
	return s.meta
}
