package cos

import "sync"

// StopCh is a close-once stop signal, safe to Close() from multiple
// goroutines and to Listen() from any number of readers.
type StopCh struct {
	ch   chan struct{}
	once sync.Once
}

func (s *StopCh) Init() { s.ch = make(chan struct{}) }

func (s *StopCh) Close() { s.once.Do(func() { close(s.ch) }) }

func (s *StopCh) Listen() <-chan struct{} { return s.ch }

func (s *StopCh) Stopped() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}
