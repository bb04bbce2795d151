// Package point owns the remote-endpoint role: the client that dials the
// central, the handlers for configuration calls, and the liveness scheduler.
package point

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/voltbridge/voltbridge/internal/confstore"
	"github.com/voltbridge/voltbridge/internal/ocpp"
	"github.com/voltbridge/voltbridge/internal/schema"
	"github.com/voltbridge/voltbridge/internal/session"
)

// Handlers answers the calls the point role accepts: GetConfiguration and
// ChangeConfiguration.
type Handlers struct {
	store     *confstore.Store
	validator schema.Validator
	log       zerolog.Logger
}

func NewHandlers(store *confstore.Store, validator schema.Validator, log zerolog.Logger) *Handlers {
	return &Handlers{store: store, validator: validator, log: log}
}

func (h *Handlers) HandleCall(ctx context.Context, sess *session.Session, action ocpp.Action, payload json.RawMessage) (any, error) {
	switch action {
	case ocpp.ActionGetConfiguration:
		return h.getConfiguration(payload)
	case ocpp.ActionChangeConfiguration:
		return h.changeConfiguration(payload)
	default:
		return nil, ocpp.ErrNotSupported
	}
}

// getConfiguration partitions the requested keys into known entries and
// unknown names. It succeeds at the envelope level even when every key is
// unknown; an empty request returns the whole store.
func (h *Handlers) getConfiguration(payload json.RawMessage) (any, error) {
	var req ocpp.GetConfigurationReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewCallError(ocpp.CodeValidationFailed, "unparseable GetConfiguration payload")
	}
	keys := req.Key
	if len(keys) == 0 {
		keys = h.store.Keys()
	}

	conf := ocpp.GetConfigurationConf{
		ConfigurationKey: make([]ocpp.KeyValue, 0, len(keys)),
		UnknownKey:       make([]string, 0),
	}
	for _, key := range keys {
		entry, ok := h.store.Get(key)
		if !ok {
			conf.UnknownKey = append(conf.UnknownKey, key)
			continue
		}
		conf.ConfigurationKey = append(conf.ConfigurationKey, ocpp.KeyValue{
			Key:      entry.Key,
			Value:    entry.Value(),
			Readonly: entry.Readonly,
		})
	}
	return conf, nil
}

// changeConfiguration updates one existing entry in place. A payload the
// schema rejects gets a CallError and no change; an unknown or readonly key
// or an uncoercible value gets a Rejected status.
func (h *Handlers) changeConfiguration(payload json.RawMessage) (any, error) {
	if err := h.validate(ocpp.ActionChangeConfiguration, payload); err != nil {
		return nil, err
	}
	var req ocpp.ChangeConfigurationReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewCallError(ocpp.CodeValidationFailed, "unparseable ChangeConfiguration payload")
	}

	if err := h.store.Set(req.Key, req.Value); err != nil {
		h.log.Info().Str("key", req.Key).Err(err).Msg("configuration change rejected")
		return ocpp.ChangeConfigurationConf{Status: ocpp.StatusRejected}, nil
	}
	h.log.Info().Str("key", req.Key).Interface("value", req.Value).Msg("configuration changed")
	return ocpp.ChangeConfigurationConf{Status: ocpp.StatusAccepted}, nil
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
	return fmt.Errorf("point: validate %s: %w", action, err)
}
