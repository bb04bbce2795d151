package point

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltbridge/voltbridge/internal/confstore"
	"github.com/voltbridge/voltbridge/internal/ocpp"
	"github.com/voltbridge/voltbridge/internal/session"
)

// HeartbeatIntervalKey is the configuration entry the scheduler reads its
// period from.
const HeartbeatIntervalKey = "HeartbeatInterval"

const defaultHeartbeatInterval = 300 * time.Second

// Heartbeat emits a liveness call, then sleeps for the session's currently
// configured interval before repeating. The interval is read fresh at the
// start of each sleep: a configuration change takes effect from the next
// cycle, an in-progress sleep is not preempted.
type Heartbeat struct {
	sess  *session.Session
	store *confstore.Store
	log   zerolog.Logger

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewHeartbeat(sess *session.Session, store *confstore.Store, log zerolog.Logger) *Heartbeat {
	h := &Heartbeat{
		sess:  sess,
		store: store,
		log:   log,
	}
	h.sleep = h.sleepInterval
	return h
}

// Run loops until ctx is cancelled or the session closes. A failed beat is
// logged and the loop keeps going; only session close or cancellation stops
// liveness.
func (h *Heartbeat) Run(ctx context.Context) error {
	for {
		if err := h.beat(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-h.sess.Done():
				return ocpp.ErrConnectionClosed
			default:
			}
			h.log.Warn().Err(err).Msg("heartbeat failed")
		}

		interval := h.interval()
		if err := h.sleep(ctx, interval); err != nil {
			return err
		}
		select {
		case <-h.sess.Done():
			return ocpp.ErrConnectionClosed
		default:
		}
	}
}

func (h *Heartbeat) beat(ctx context.Context) error {
	raw, err := h.sess.Call(ctx, ocpp.ActionHeartbeat, ocpp.HeartbeatReq{})
	if err != nil {
		return err
	}
	var conf ocpp.HeartbeatConf
	if err := json.Unmarshal(raw, &conf); err != nil {
		h.log.Warn().Err(err).Msg("unparseable heartbeat reply")
		return nil
	}
	h.log.Debug().Time("central_time", conf.CurrentTime).Msg("heartbeat acknowledged")
	return nil
}

func (h *Heartbeat) interval() time.Duration {
	if secs, ok := h.store.Int(HeartbeatIntervalKey); ok && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultHeartbeatInterval
}

// sleepInterval waits out one period but wakes immediately on session close,
// so teardown never waits for a long interval to elapse.
func (h *Heartbeat) sleepInterval(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-h.sess.Done():
		return ocpp.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
