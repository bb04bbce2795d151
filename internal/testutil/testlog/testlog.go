// Package testlog routes zerolog output through the test runner so log
// lines attach to the test that produced them.
package testlog

import (
	"testing"

	"github.com/rs/zerolog"
)

func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).With().
		Str("test", t.Name()).
		Logger()
}
