package stream

import (
	"sync"
	"time"
)

const DefaultHeartbeatInterval = 10 * time.Second

// Heartbeat drives Hub.Heartbeat on a fixed period until stopped.
type Heartbeat struct {
	hub      *Hub
	interval time.Duration
	quit     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewHeartbeat(hub *Hub, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{
		hub:      hub,
		interval: interval,
		quit:     make(chan struct{}),
	}
}

func (b *Heartbeat) Start() {
	b.wg.Add(1)
	go b.run()
}

func (b *Heartbeat) Stop() {
	b.stopOnce.Do(func() { close(b.quit) })
	b.wg.Wait()
}

func (b *Heartbeat) run() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.hub.Heartbeat()
		case <-b.quit:
			return
		}
	}
}
