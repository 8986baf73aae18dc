package bot

import "sync"

// sequencer выполняет задания одного чата строго в порядке постановки:
// у каждого чата свой воркер с FIFO-очередью. Разные чаты обслуживаются
// параллельно. Порядок гарантирован, только если Do зовут из одной
// горутины, как это делает цикл обновлений.
type sequencer struct {
	mu     sync.Mutex
	queues map[int64]chan func()
	wg     sync.WaitGroup
	closed bool
}

func newSequencer() *sequencer {
	return &sequencer{queues: map[int64]chan func(){}}
}

func (s *sequencer) Do(chatID int64, fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	q, ok := s.queues[chatID]
	if !ok {
		q = make(chan func(), 64)
		s.queues[chatID] = q
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for f := range q {
				f()
			}
		}()
	}
	s.mu.Unlock()
	q <- fn
}

// Close дожидается выполнения уже поставленных заданий и
// останавливает воркеров. Do после Close молча игнорируется.
func (s *sequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, q := range s.queues {
		close(q)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
