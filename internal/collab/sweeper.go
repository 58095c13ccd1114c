package collab

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SweeperConfig controls server-side typing-state expiry. Clients are
// expected to send their own stop signals; the sweeper only cleans up after
// clients that died mid-type.
type SweeperConfig struct {
	Interval time.Duration
	TTL      time.Duration
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval: 2 * time.Second,
		TTL:      5 * time.Second,
	}
}

// TypingSweeper periodically clears stale typing marks and reports each
// eviction through a callback so the transport layer can notify observers.
type TypingSweeper struct {
	registry *Registry
	config   SweeperConfig
	onEvict  func(TypingEviction)
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewTypingSweeper(registry *Registry, config SweeperConfig, onEvict func(TypingEviction)) *TypingSweeper {
	return &TypingSweeper{
		registry: registry,
		config:   config,
		onEvict:  onEvict,
		stop:     make(chan struct{}),
	}
}

func (s *TypingSweeper) Start() {
	s.wg.Add(1)
	go s.run()
	logrus.WithFields(logrus.Fields{
		"interval": s.config.Interval,
		"ttl":      s.config.TTL,
	}).Info("Typing sweeper started")
}

func (s *TypingSweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
	logrus.Info("Typing sweeper stopped")
}

func (s *TypingSweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *TypingSweeper) sweep() {
	evicted := s.registry.ExpireTyping(s.config.TTL)
	for _, ev := range evicted {
		logrus.WithFields(logrus.Fields{
			"room_id": ev.RoomID,
			"conn_id": ev.ConnID,
		}).Debug("Expired stale typing mark")
		if s.onEvict != nil {
			s.onEvict(ev)
		}
	}
}
