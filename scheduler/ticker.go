package scheduler

import (
	"sync"
	"time"
)

// Ticker schedules each callback on its own time.Ticker goroutine.
// Callbacks of one timer never overlap; a slow callback drops ticks.
type Ticker struct{}

// NewTicker returns a Ticker scheduler.
func NewTicker() *Ticker { return &Ticker{} }

// Schedule implements Scheduler.
func (*Ticker) Schedule(interval time.Duration, fn func()) Timer {
	t := &tickerTimer{stop: make(chan struct{})}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				// Drop a tick that lost the race with Cancel.
				select {
				case <-t.stop:
					return
				default:
				}
				fn()
			}
		}
	}()
	return t
}

type tickerTimer struct {
	once sync.Once
	stop chan struct{}
}

func (t *tickerTimer) Cancel() {
	t.once.Do(func() { close(t.stop) })
}
