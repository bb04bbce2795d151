package ocpp

import "time"

// Action names one remote procedure. The set is closed per role: the central
// role answers BootNotification and Heartbeat, the point role answers
// GetConfiguration and ChangeConfiguration. Dispatch switches exhaustively
// over these constants so an unsupported action is a visible gap, not a
// missing map entry.
type Action string

const (
	ActionBootNotification    Action = "BootNotification"
	ActionHeartbeat           Action = "Heartbeat"
	ActionGetConfiguration    Action = "GetConfiguration"
	ActionChangeConfiguration Action = "ChangeConfiguration"
)

// Role distinguishes the two ends of a connection.
type Role string

const (
	RoleCentral Role = "central"
	RolePoint   Role = "point"
)

// Reply statuses shared by BootNotification and ChangeConfiguration.
const (
	StatusAccepted = "Accepted"
	StatusRejected = "Rejected"
)

// BootNotificationReq announces a point's self-reported identity. The serial
// number is the registry key on the central side and is untrusted input.
type BootNotificationReq struct {
	ChargePointModel        string `json:"chargePointModel"`
	ChargePointVendor       string `json:"chargePointVendor"`
	ChargePointSerialNumber string `json:"chargePointSerialNumber"`
}

// BootNotificationConf carries the acceptance status, central time, and the
// heartbeat interval (seconds) assigned to the point.
type BootNotificationConf struct {
	Status      string    `json:"status"`
	CurrentTime time.Time `json:"currentTime"`
	Interval    int       `json:"interval"`
}

// HeartbeatReq is intentionally empty.
type HeartbeatReq struct{}

type HeartbeatConf struct {
	CurrentTime time.Time `json:"currentTime"`
}

// GetConfigurationReq requests the listed keys; an empty list means all keys.
type GetConfigurationReq struct {
	Key []string `json:"key"`
}

// KeyValue is one known configuration entry in a GetConfiguration reply.
// Value keeps the entry's declared type on the wire (string or integer).
type KeyValue struct {
	Key      string `json:"key"`
	Value    any    `json:"value"`
	Readonly bool   `json:"readonly"`
}

type GetConfigurationConf struct {
	ConfigurationKey []KeyValue `json:"configurationKey"`
	UnknownKey       []string   `json:"unknownKey"`
}

// ChangeConfigurationReq updates one existing key. Value arrives in whatever
// JSON type the caller chose; the point coerces it to the entry's declared
// type or rejects.
type ChangeConfigurationReq struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type ChangeConfigurationConf struct {
	Status string `json:"status"`
}
