package service

import (
	"log/slog"
	"sync"
	"time"

	"komensa/internal/repository"
)

// Watchdog recovers rooms left assistant-busy by a crash between the
// busy-flag set and the turn advance. It periodically clears the flag on
// rooms that have been busy longer than any invocation could take.
type Watchdog struct {
	roomRepo repository.RoomStateRepository
	timeout  time.Duration
	interval time.Duration

	stop chan struct{}
	once sync.Once
}

func NewWatchdog(roomRepo repository.RoomStateRepository, timeout time.Duration) *Watchdog {
	return &Watchdog{
		roomRepo: roomRepo,
		timeout:  timeout,
		interval: timeout / 4,
		stop:     make(chan struct{}),
	}
}

func (w *Watchdog) Start() {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.Sweep()
			case <-w.stop:
				return
			}
		}
	}()
}

func (w *Watchdog) Stop() {
	w.once.Do(func() { close(w.stop) })
}

// Sweep releases rooms busy since before the timeout cutoff.
func (w *Watchdog) Sweep() {
	released, err := w.roomRepo.ReleaseStuck(time.Now().Add(-w.timeout))
	if err != nil {
		slog.Error("watchdog sweep failed", "error", err)
		return
	}
	if released > 0 {
		slog.Warn("released stuck rooms", "count", released)
	}
}
