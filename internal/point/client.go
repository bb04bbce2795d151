package point

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltbridge/voltbridge/internal/confstore"
	"github.com/voltbridge/voltbridge/internal/ocpp"
	"github.com/voltbridge/voltbridge/internal/schema"
	"github.com/voltbridge/voltbridge/internal/session"
)

var (
	ErrCentralAddrRequired = errors.New("point: central address required")
	ErrSerialRequired      = errors.New("point: serial number required")
	ErrBootRejected        = errors.New("point: boot notification rejected")
)

// ClientConfig configures one point endpoint.
type ClientConfig struct {
	CentralAddr    string
	Model          string
	Vendor         string
	SerialNumber   string
	ConnectTimeout time.Duration
	CallTimeout    time.Duration
}

// Client dials the central, announces itself, and keeps the connection's
// two duties running: the session listener and the liveness scheduler.
type Client struct {
	cfg       ClientConfig
	store     *confstore.Store
	validator schema.Validator
	log       zerolog.Logger
}

func NewClient(cfg ClientConfig, store *confstore.Store, validator schema.Validator, log zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.CentralAddr) == "" {
		return nil, ErrCentralAddrRequired
	}
	if strings.TrimSpace(cfg.SerialNumber) == "" {
		return nil, ErrSerialRequired
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	return &Client{cfg: cfg, store: store, validator: validator, log: log}, nil
}

// Run connects, performs the boot handshake, and blocks until ctx is
// cancelled or the connection closes. Both connection goroutines are joined
// before Run returns. Reconnection is the operator's concern, not the
// client's.
func (c *Client) Run(ctx context.Context) error {
	sess, err := c.Connect(ctx)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		serveErr <- sess.Serve(ctx)
	}()
	defer func() {
		_ = sess.Close()
		<-serveDone
	}()

	if err := c.boot(ctx, sess); err != nil {
		return err
	}

	heartbeat := NewHeartbeat(sess, c.store, c.log)
	hbErr := make(chan error, 1)
	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		hbErr <- heartbeat.Run(ctx)
	}()
	defer func() {
		_ = sess.Close()
		<-hbDone
	}()

	select {
	case err := <-serveErr:
		return err
	case err := <-hbErr:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect dials the central and builds the session with the point handlers.
func (c *Client) Connect(ctx context.Context) (*session.Session, error) {
	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.CentralAddr)
	if err != nil {
		return nil, fmt.Errorf("point: dial central %s: %w", c.cfg.CentralAddr, err)
	}
	c.log.Info().Str("central", c.cfg.CentralAddr).Msg("connected")
	return session.New(conn, session.Options{
		Role:        ocpp.RolePoint,
		Handler:     NewHandlers(c.store, c.validator, c.log),
		Logger:      c.log,
		CallTimeout: c.cfg.CallTimeout,
	}), nil
}

// boot announces identity and applies the interval the central assigned to
// the HeartbeatInterval entry before liveness starts.
func (c *Client) boot(ctx context.Context, sess *session.Session) error {
	raw, err := sess.Call(ctx, ocpp.ActionBootNotification, ocpp.BootNotificationReq{
		ChargePointModel:        c.cfg.Model,
		ChargePointVendor:       c.cfg.Vendor,
		ChargePointSerialNumber: c.cfg.SerialNumber,
	})
	if err != nil {
		return fmt.Errorf("point: boot notification: %w", err)
	}
	var conf ocpp.BootNotificationConf
	if err := json.Unmarshal(raw, &conf); err != nil {
		return fmt.Errorf("point: unparseable boot reply: %w", err)
	}
	if conf.Status != ocpp.StatusAccepted {
		return fmt.Errorf("%w: status %q", ErrBootRejected, conf.Status)
	}
	if conf.Interval > 0 {
		if err := c.store.Set(HeartbeatIntervalKey, conf.Interval); err != nil {
			c.log.Warn().Int("interval", conf.Interval).Err(err).Msg("could not apply assigned heartbeat interval")
		}
	}
	c.log.Info().
		Str("serial", c.cfg.SerialNumber).
		Int("interval", conf.Interval).
		Time("central_time", conf.CurrentTime).
		Msg("boot accepted")
	return nil
}
