package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voltbridge/voltbridge/internal/testutil/testlog"
)

const bootNotificationSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "chargePointModel": {"type": "string"},
    "chargePointVendor": {"type": "string"},
    "chargePointSerialNumber": {"type": "string"}
  },
  "required": ["chargePointModel", "chargePointVendor"],
  "additionalProperties": true
}`

func newDirStore(t *testing.T) *DirStore {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "BootNotification.json")
	require.NoError(t, os.WriteFile(path, []byte(bootNotificationSchema), 0o644))
	return NewDirStore(dir, testlog.Logger(t))
}

func TestDirStoreAcceptsValidPayload(t *testing.T) {
	store := newDirStore(t)
	payload := []byte(`{"chargePointModel":"M","chargePointVendor":"V","chargePointSerialNumber":"1"}`)
	require.NoError(t, store.Validate("BootNotification", payload))
	// Cached compile path.
	require.NoError(t, store.Validate("BootNotification", payload))
}

func TestDirStoreRejectsInvalidPayload(t *testing.T) {
	store := newDirStore(t)
	err := store.Validate("BootNotification", []byte(`{"chargePointVendor":"V"}`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "BootNotification", verr.Action)
}

func TestDirStoreRejectsNonJSONPayload(t *testing.T) {
	store := newDirStore(t)
	err := store.Validate("BootNotification", []byte(`not-json`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestDirStoreMissingSchema(t *testing.T) {
	store := newDirStore(t)
	err := store.Validate("Heartbeat", []byte(`{}`))
	require.ErrorIs(t, err, ErrSchemaNotFound)
}
