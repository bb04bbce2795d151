// Package schema owns payload validation against per-action schema
// documents. The core depends only on the Validator contract; the
// directory-backed store is the deployment's concrete implementation.
package schema

import (
	"errors"
	"fmt"
)

var ErrSchemaNotFound = errors.New("schema: schema not found")

// ValidationError reports a payload rejected by an action's schema.
type ValidationError struct {
	Action string
	Cause  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema: action %s: %v", e.Action, e.Cause)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// Validator checks a payload against the schema registered for an action.
// A missing schema is reported as ErrSchemaNotFound, a deployment gap the
// caller resolves by policy (fail-open or fail-closed); a rejected payload
// is reported as a *ValidationError.
type Validator interface {
	Validate(action string, payload []byte) error
}

// Func adapts a function to the Validator contract.
type Func func(action string, payload []byte) error

func (f Func) Validate(action string, payload []byte) error {
	return f(action, payload)
}

// AllowAll accepts every payload. Useful for tests and deployments without
// a schema directory.
func AllowAll() Validator {
	return Func(func(string, []byte) error { return nil })
}
