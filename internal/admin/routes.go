package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voltbridge/voltbridge/internal/ocpp"
	"github.com/voltbridge/voltbridge/internal/session"
)

var startedAt = time.Now()

func (s *Server) registerRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(startedAt).String(),
			"component": "admin-api",
		})
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine.GET("/points", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"points": s.directory.Identities()})
	})

	s.engine.GET("/points/:point/configuration", s.getConfiguration)
	s.engine.POST("/points/:point/configuration", s.changeConfiguration)
}

func (s *Server) getConfiguration(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	keys := c.QueryArray("key")
	if len(keys) == 1 && strings.Contains(keys[0], ",") {
		keys = strings.Split(keys[0], ",")
	}

	raw, ok := s.call(c, sess, ocpp.ActionGetConfiguration, ocpp.GetConfigurationReq{Key: keys})
	if !ok {
		return
	}
	var conf ocpp.GetConfigurationConf
	if err := json.Unmarshal(raw, &conf); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "unparseable device reply"})
		return
	}
	c.JSON(http.StatusOK, conf)
}

type changeConfigurationBody struct {
	Key   string `json:"key" binding:"required"`
	Value any    `json:"value"`
}

func (s *Server) changeConfiguration(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	var body changeConfigurationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raw, ok := s.call(c, sess, ocpp.ActionChangeConfiguration, ocpp.ChangeConfigurationReq{
		Key:   body.Key,
		Value: body.Value,
	})
	if !ok {
		return
	}
	var conf ocpp.ChangeConfigurationConf
	if err := json.Unmarshal(raw, &conf); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "unparseable device reply"})
		return
	}
	c.JSON(http.StatusOK, conf)
}

func (s *Server) lookup(c *gin.Context) (*session.Session, bool) {
	identity := c.Param("point")
	sess, ok := s.directory.Lookup(identity)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "point not connected", "point": identity})
		return nil, false
	}
	return sess, true
}

// call forwards one outbound call against the device's live session and maps
// failures onto HTTP statuses: timeout -> 504, device CallError -> 502 with
// the error payload, closed connection -> 502.
func (s *Server) call(c *gin.Context, sess *session.Session, action ocpp.Action, payload any) (json.RawMessage, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.CallTimeout)
	defer cancel()

	raw, err := sess.Call(ctx, action, payload)
	if err == nil {
		return raw, true
	}

	callErr := &ocpp.CallError{}
	switch {
	case errors.As(err, &callErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "device rejected call", "code": callErr.Code, "description": callErr.Description})
	case errors.Is(err, ocpp.ErrCallTimeout), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "device did not reply in time"})
	default:
		s.log.Warn().Str("action", string(action)).Err(err).Msg("admin call failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
	return nil, false
}
