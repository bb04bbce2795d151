package central

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltbridge/voltbridge/internal/ocpp"
	"github.com/voltbridge/voltbridge/internal/schema"
	"github.com/voltbridge/voltbridge/internal/session"
)

// Handlers answers the calls the central role accepts: BootNotification and
// Heartbeat. Everything else is NotImplemented.
type Handlers struct {
	registry  *Registry
	validator schema.Validator
	interval  time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

func NewHandlers(registry *Registry, validator schema.Validator, heartbeatInterval time.Duration, log zerolog.Logger) *Handlers {
	return &Handlers{
		registry:  registry,
		validator: validator,
		interval:  heartbeatInterval,
		log:       log,
		now:       time.Now,
	}
}

func (h *Handlers) HandleCall(ctx context.Context, sess *session.Session, action ocpp.Action, payload json.RawMessage) (any, error) {
	switch action {
	case ocpp.ActionBootNotification:
		return h.bootNotification(sess, payload)
	case ocpp.ActionHeartbeat:
		return h.heartbeat(sess)
	default:
		return nil, ocpp.ErrNotSupported
	}
}

// bootNotification validates the handshake, records the point in the
// registry under its self-reported serial number, and assigns the heartbeat
// interval. An invalid handshake is rejected with a CallError and the point
// is not registered; a missing schema is a deployment gap and fails open.
func (h *Handlers) bootNotification(sess *session.Session, payload json.RawMessage) (any, error) {
	if err := h.validate(ocpp.ActionBootNotification, payload); err != nil {
		return nil, err
	}
	var req ocpp.BootNotificationReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewCallError(ocpp.CodeValidationFailed, "unparseable BootNotification payload")
	}
	identity := strings.TrimSpace(req.ChargePointSerialNumber)
	if identity == "" {
		return nil, ocpp.NewCallError(ocpp.CodeValidationFailed, "chargePointSerialNumber required")
	}

	sess.SetIdentity(identity)
	h.registry.Upsert(identity, sess)
	h.log.Info().
		Str("identity", identity).
		Str("model", req.ChargePointModel).
		Str("vendor", req.ChargePointVendor).
		Str("remote", sess.RemoteAddr()).
		Msg("point registered")

	return ocpp.BootNotificationConf{
		Status:      ocpp.StatusAccepted,
		CurrentTime: h.now().UTC(),
		Interval:    int(h.interval / time.Second),
	}, nil
}

func (h *Handlers) heartbeat(sess *session.Session) (any, error) {
	h.log.Debug().Str("identity", sess.Identity()).Msg("heartbeat")
	return ocpp.HeartbeatConf{CurrentTime: h.now().UTC()}, nil
}

func (h *Handlers) validate(action ocpp.Action, payload json.RawMessage) error {
	err := h.validator.Validate(string(action), payload)
	if err == nil {
		return nil
	}
	if errors.Is(err, schema.ErrSchemaNotFound) {
		h.log.Warn().Str("action", string(action)).Msg("no schema registered, accepting payload")
		return nil
	}
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return ocpp.NewCallError(ocpp.CodeValidationFailed, "%s payload rejected by schema", action)
	}
	return fmt.Errorf("central: validate %s: %w", action, err)
}
