package activity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const appendTimeout = 5 * time.Second

type record struct {
	roomID string
	actor  string
	action string
}

// Recorder decouples the in-memory presence and relay paths from durable
// writes. Delivery is at-most-once and best-effort: when the queue is full
// the record is dropped and counted, never blocking the caller, and a
// failed write degrades to "no audit trail" rather than failing the
// session.
type Recorder struct {
	store Store
	queue chan record
	stop  chan struct{}
	wg    sync.WaitGroup

	dropped  atomic.Int64
	failures atomic.Int64
}

func NewRecorder(store Store, queueSize int) *Recorder {
	return &Recorder{
		store: store,
		queue: make(chan record, queueSize),
		stop:  make(chan struct{}),
	}
}

func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.run()
	logrus.WithField("queue_size", cap(r.queue)).Info("Activity recorder started")
}

// Stop drains the queue and waits for the writer to finish.
func (r *Recorder) Stop() {
	close(r.stop)
	r.wg.Wait()
	logrus.Info("Activity recorder stopped")
}

// Record enqueues one entry without blocking. A full queue drops the record
// with a warning.
func (r *Recorder) Record(roomID, actor, action string) {
	select {
	case r.queue <- record{roomID: roomID, actor: actor, action: action}:
	default:
		r.dropped.Add(1)
		logrus.WithFields(logrus.Fields{
			"room_id": roomID,
			"action":  action,
		}).Warn("Activity queue full, dropping record")
	}
}

// Dropped returns how many records were discarded due to a full queue.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Failures returns how many records failed to persist.
func (r *Recorder) Failures() int64 {
	return r.failures.Load()
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.queue:
			r.write(rec)
		case <-r.stop:
			// Drain whatever made it into the queue before shutdown.
			for {
				select {
				case rec := <-r.queue:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec record) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	if err := r.store.Append(ctx, rec.roomID, rec.actor, rec.action); err != nil {
		r.failures.Add(1)
		logrus.WithFields(logrus.Fields{
			"room_id": rec.roomID,
			"action":  rec.action,
		}).WithError(err).Error("Failed to persist activity record")
	}
}
