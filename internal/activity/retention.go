package activity

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RetentionConfig controls the time-based expiry of activity entries.
// Retention is a blunt global TTL, not tied to room activity.
type RetentionConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Interval: time.Hour,
		MaxAge:   24 * time.Hour,
	}
}

// RetentionSweeper periodically deletes entries older than MaxAge.
type RetentionSweeper struct {
	store  Store
	config RetentionConfig
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewRetentionSweeper(store Store, config RetentionConfig) *RetentionSweeper {
	return &RetentionSweeper{
		store:  store,
		config: config,
		stop:   make(chan struct{}),
	}
}

func (s *RetentionSweeper) Start() {
	s.wg.Add(1)
	go s.run()
	logrus.WithFields(logrus.Fields{
		"interval": s.config.Interval,
		"max_age":  s.config.MaxAge,
	}).Info("Retention sweeper started")
}

func (s *RetentionSweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
	logrus.Info("Retention sweeper stopped")
}

func (s *RetentionSweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *RetentionSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := s.store.DeleteExpired(ctx, time.Now().Add(-s.config.MaxAge))
	if err != nil {
		logrus.WithError(err).Error("Retention sweep failed")
		return
	}
	if deleted > 0 {
		logrus.WithField("deleted", deleted).Info("Expired activity entries removed")
	}
}
