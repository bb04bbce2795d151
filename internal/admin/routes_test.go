package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voltbridge/voltbridge/internal/confstore"
	"github.com/voltbridge/voltbridge/internal/ocpp"
	"github.com/voltbridge/voltbridge/internal/point"
	"github.com/voltbridge/voltbridge/internal/schema"
	"github.com/voltbridge/voltbridge/internal/session"
	"github.com/voltbridge/voltbridge/internal/testutil/testlog"
)

type stubDirectory map[string]*session.Session

func (d stubDirectory) Lookup(identity string) (*session.Session, bool) {
	sess, ok := d[identity]
	return sess, ok
}

func (d stubDirectory) Identities() []string {
	out := make([]string, 0, len(d))
	for identity := range d {
		out = append(out, identity)
	}
	sort.Strings(out)
	return out
}

// serveAndJoin runs the session listener and blocks cleanup until the serve
// goroutine has fully exited, so nothing touches the test logger afterwards.
func serveAndJoin(t *testing.T, sess *session.Session) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sess.Serve(context.Background())
	}()
	t.Cleanup(func() {
		_ = sess.Close()
		<-done
	})
}

// newDevicePair wires a central-side session against a served point with the
// given store, as the facade would target it through the registry.
func newDevicePair(t *testing.T, store *confstore.Store) *session.Session {
	t.Helper()
	centralConn, pointConn := net.Pipe()

	centralSess := session.New(centralConn, session.Options{
		Role:        ocpp.RoleCentral,
		Logger:      testlog.Logger(t),
		CallTimeout: 2 * time.Second,
	})
	pointSess := session.New(pointConn, session.Options{
		Role:    ocpp.RolePoint,
		Handler: point.NewHandlers(store, schema.AllowAll(), testlog.Logger(t)),
		Logger:  testlog.Logger(t),
	})
	serveAndJoin(t, centralSess)
	serveAndJoin(t, pointSess)
	return centralSess
}

func newFacade(t *testing.T, cfg Config, directory Directory) http.Handler {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	srv, err := NewServer(cfg, directory, testlog.Logger(t))
	require.NoError(t, err)
	return srv.Handler()
}

func doRequest(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestListPoints(t *testing.T) {
	store := confstore.New(confstore.IntEntry("HeartbeatInterval", 30, false))
	handler := newFacade(t, Config{}, stubDirectory{"cp-1": newDevicePair(t, store)})

	rec := doRequest(t, handler, http.MethodGet, "/points", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"points":["cp-1"]}`, rec.Body.String())
}

func TestGetConfigurationForwardsToDevice(t *testing.T) {
	store := confstore.New(confstore.IntEntry("HeartbeatInterval", 30, false))
	handler := newFacade(t, Config{}, stubDirectory{"cp-1": newDevicePair(t, store)})

	rec := doRequest(t, handler, http.MethodGet, "/points/cp-1/configuration?key=HeartbeatInterval&key=Nonexistent", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var conf ocpp.GetConfigurationConf
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conf))
	require.Len(t, conf.ConfigurationKey, 1)
	require.Equal(t, "HeartbeatInterval", conf.ConfigurationKey[0].Key)
	require.Equal(t, []string{"Nonexistent"}, conf.UnknownKey)
}

func TestGetConfigurationCommaSeparatedKeys(t *testing.T) {
	store := confstore.New(confstore.IntEntry("HeartbeatInterval", 30, false))
	handler := newFacade(t, Config{}, stubDirectory{"cp-1": newDevicePair(t, store)})

	rec := doRequest(t, handler, http.MethodGet, "/points/cp-1/configuration?key=HeartbeatInterval,Nonexistent", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var conf ocpp.GetConfigurationConf
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conf))
	require.Len(t, conf.ConfigurationKey, 1)
	require.Equal(t, []string{"Nonexistent"}, conf.UnknownKey)
}

func TestGetConfigurationUnknownPoint(t *testing.T) {
	handler := newFacade(t, Config{}, stubDirectory{})

	rec := doRequest(t, handler, http.MethodGet, "/points/ghost/configuration", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChangeConfigurationForwardsToDevice(t *testing.T) {
	store := confstore.New(confstore.IntEntry("HeartbeatInterval", 30, false))
	handler := newFacade(t, Config{}, stubDirectory{"cp-1": newDevicePair(t, store)})

	rec := doRequest(t, handler, http.MethodPost, "/points/cp-1/configuration",
		`{"key":"HeartbeatInterval","value":"60"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"Accepted"}`, rec.Body.String())

	n, _ := store.Int("HeartbeatInterval")
	require.Equal(t, 60, n)

	rec = doRequest(t, handler, http.MethodPost, "/points/cp-1/configuration",
		`{"key":"NoSuchKey","value":"60"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"Rejected"}`, rec.Body.String())
}

func TestChangeConfigurationInvalidBody(t *testing.T) {
	store := confstore.New()
	handler := newFacade(t, Config{}, stubDirectory{"cp-1": newDevicePair(t, store)})

	rec := doRequest(t, handler, http.MethodPost, "/points/cp-1/configuration", `{"value":"60"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeviceCallErrorSurfacesAsBadGateway(t *testing.T) {
	centralConn, pointConn := net.Pipe()
	centralSess := session.New(centralConn, session.Options{
		Role:        ocpp.RoleCentral,
		Logger:      testlog.Logger(t),
		CallTimeout: 2 * time.Second,
	})
	pointSess := session.New(pointConn, session.Options{
		Role:    ocpp.RolePoint,
		Handler: rejectingHandler{},
		Logger:  testlog.Logger(t),
	})
	serveAndJoin(t, centralSess)
	serveAndJoin(t, pointSess)

	handler := newFacade(t, Config{}, stubDirectory{"cp-1": centralSess})
	rec := doRequest(t, handler, http.MethodPost, "/points/cp-1/configuration",
		`{"key":"HeartbeatInterval","value":"60"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), ocpp.CodeValidationFailed)
}

type rejectingHandler struct{}

func (rejectingHandler) HandleCall(context.Context, *session.Session, ocpp.Action, json.RawMessage) (any, error) {
	return nil, ocpp.NewCallError(ocpp.CodeValidationFailed, "rejected")
}

func TestUnresponsiveDeviceTimesOut(t *testing.T) {
	centralConn, rawConn := net.Pipe()
	centralSess := session.New(centralConn, session.Options{
		Role:        ocpp.RoleCentral,
		Logger:      testlog.Logger(t),
		CallTimeout: 2 * time.Second,
	})
	serveAndJoin(t, centralSess)
	// Swallow frames, never reply.
	go func() {
		reader := bufio.NewReader(rawConn)
		for {
			if _, err := reader.ReadBytes('\n'); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() { _ = rawConn.Close() })

	handler := newFacade(t, Config{CallTimeout: 100 * time.Millisecond}, stubDirectory{"cp-1": centralSess})
	rec := doRequest(t, handler, http.MethodGet, "/points/cp-1/configuration?key=HeartbeatInterval", "")
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestRateLimitRejectsBurst(t *testing.T) {
	handler := newFacade(t, Config{RateLimit: 0.001, RateBurst: 1}, stubDirectory{})

	first := doRequest(t, handler, http.MethodGet, "/points", "")
	require.Equal(t, http.StatusOK, first.Code)
	second := doRequest(t, handler, http.MethodGet, "/points", "")
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}
