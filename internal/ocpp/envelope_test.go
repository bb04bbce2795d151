package ocpp

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeDecodeCallRoundTrip(t *testing.T) {
	payload := BootNotificationReq{
		ChargePointModel:        "BestModel",
		ChargePointVendor:       "BestVendor",
		ChargePointSerialNumber: "sn-001",
	}
	raw, err := EncodeCall("msg-1", ActionBootNotification, payload)
	if err != nil {
		t.Fatalf("encode call: %v", err)
	}
	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != MessageCall || env.ID != "msg-1" || env.Action != ActionBootNotification {
		t.Fatalf("envelope mismatch: %+v", env)
	}
	var got BootNotificationReq
	if err := json.Unmarshal(env.Payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got != payload {
		t.Fatalf("payload mismatch: got=%+v want=%+v", got, payload)
	}
}

func TestEncodeDecodeCallArbitraryPayload(t *testing.T) {
	payload := map[string]any{
		"nested": map[string]any{"a": float64(1), "b": []any{"x", "y"}},
		"flag":   true,
	}
	raw, err := EncodeCall("msg-2", Action("Anything"), payload)
	if err != nil {
		t.Fatalf("encode call: %v", err)
	}
	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(env.Payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got["flag"] != true {
		t.Fatalf("payload mismatch: %+v", got)
	}
}

func TestEncodeDecodeResultAndError(t *testing.T) {
	raw, err := EncodeResult("msg-3", ChangeConfigurationConf{Status: StatusAccepted})
	if err != nil {
		t.Fatalf("encode result: %v", err)
	}
	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if env.Type != MessageCallResult || env.ID != "msg-3" || env.Action != "" {
		t.Fatalf("envelope mismatch: %+v", env)
	}

	raw, err = EncodeError("msg-4", NewCallError(CodeNotImplemented, "no handler"))
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	env, err = Decode(raw)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if env.Type != MessageCallError || env.ID != "msg-4" {
		t.Fatalf("envelope mismatch: %+v", env)
	}
	var callErr CallError
	if err := json.Unmarshal(env.Payload, &callErr); err != nil {
		t.Fatalf("decode call error payload: %v", err)
	}
	if callErr.Code != CodeNotImplemented {
		t.Fatalf("unexpected code: %q", callErr.Code)
	}
}

func TestDecodeMalformedFrames(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"not an array", `{"type":2}`},
		{"empty array", `[]`},
		{"non-numeric tag", `["2","id","Heartbeat",{}]`},
		{"unknown tag", `[9,"id","Heartbeat",{}]`},
		{"short call", `[2,"id","Heartbeat"]`},
		{"short result", `[3,"id"]`},
		{"non-string id", `[3,42,{}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.raw))
			if !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("expected ErrMalformedFrame, got %v", err)
			}
		})
	}
}

func TestDecodeNilPayloadEncodesEmptyObject(t *testing.T) {
	raw, err := EncodeCall("msg-5", ActionHeartbeat, nil)
	if err != nil {
		t.Fatalf("encode call: %v", err)
	}
	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(env.Payload) != "{}" {
		t.Fatalf("unexpected payload: %s", env.Payload)
	}
}
