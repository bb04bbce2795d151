package ocpp

import (
	"encoding/json"
	"fmt"
)

// MessageType is the leading tag of every wire frame.
type MessageType int

const (
	MessageCall       MessageType = 2
	MessageCallResult MessageType = 3
	MessageCallError  MessageType = 4
)

func (t MessageType) String() string {
	switch t {
	case MessageCall:
		return "Call"
	case MessageCallResult:
		return "CallResult"
	case MessageCallError:
		return "CallError"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// Envelope is one decoded wire frame. Action is set only on Call frames.
type Envelope struct {
	Type    MessageType
	ID      string
	Action  Action
	Payload json.RawMessage
}

// EncodeCall serializes a [2, id, action, payload] frame.
func EncodeCall(id string, action Action, payload any) ([]byte, error) {
	body, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]any{MessageCall, id, action, json.RawMessage(body)})
}

// EncodeResult serializes a [3, id, payload] frame.
func EncodeResult(id string, payload any) ([]byte, error) {
	body, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]any{MessageCallResult, id, json.RawMessage(body)})
}

// EncodeError serializes a [4, id, payload] frame.
func EncodeError(id string, callErr *CallError) ([]byte, error) {
	body, err := marshalPayload(callErr)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]any{MessageCallError, id, json.RawMessage(body)})
}

// Decode parses one frame. Malformed input yields an error wrapping
// ErrMalformedFrame; it never panics into the caller.
func Decode(data []byte) (Envelope, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return Envelope{}, fmt.Errorf("%w: not an array: %v", ErrMalformedFrame, err)
	}
	if len(elems) < 3 {
		return Envelope{}, fmt.Errorf("%w: %d elements", ErrMalformedFrame, len(elems))
	}

	var tag int
	if err := json.Unmarshal(elems[0], &tag); err != nil {
		return Envelope{}, fmt.Errorf("%w: non-numeric type tag", ErrMalformedFrame)
	}
	env := Envelope{Type: MessageType(tag)}
	switch env.Type {
	case MessageCall:
		if len(elems) < 4 {
			return Envelope{}, fmt.Errorf("%w: call frame with %d elements", ErrMalformedFrame, len(elems))
		}
	case MessageCallResult, MessageCallError:
	default:
		return Envelope{}, fmt.Errorf("%w: unrecognized type tag %d", ErrMalformedFrame, tag)
	}

	if err := json.Unmarshal(elems[1], &env.ID); err != nil {
		return Envelope{}, fmt.Errorf("%w: non-string message id", ErrMalformedFrame)
	}

	if env.Type == MessageCall {
		if err := json.Unmarshal(elems[2], &env.Action); err != nil {
			return Envelope{}, fmt.Errorf("%w: non-string action", ErrMalformedFrame)
		}
		env.Payload = elems[3]
		return env, nil
	}
	env.Payload = elems[2]
	return env, nil
}

func marshalPayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ocpp: encode payload: %w", err)
	}
	return body, nil
}
