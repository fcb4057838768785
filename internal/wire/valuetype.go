// Package wire defines the telemetry message schemas exchanged between
// field gateways and the collector, with a protobuf-compatible binary
// encoding. Field numbers and required/optional presence are part of
// the wire contract and must not change.
package wire

import "fmt"

// ValueType classifies the kind of value a data point reports.
type ValueType int32

const (
	// ValueTypeSignal is a discrete/status value (遥信).
	ValueTypeSignal ValueType = 0
	// ValueTypeTelemeter is a continuous measurement (遥测).
	ValueTypeTelemeter ValueType = 1
	// ValueTypeStandby is a reserved, currently unused slot (备用值).
	ValueTypeStandby ValueType = 2
)

// Valid reports whether the ordinal is a known value type.
func (t ValueType) Valid() bool {
	switch t {
	case ValueTypeSignal, ValueTypeTelemeter, ValueTypeStandby:
		return true
	}
	return false
}

func (t ValueType) String() string {
	switch t {
	case ValueTypeSignal:
		return "SIGNAL"
	case ValueTypeTelemeter:
		return "TELEMETER"
	case ValueTypeStandby:
		return "STANDBY"
	}
	return fmt.Sprintf("ValueType(%d)", int32(t))
}

// String returns a pointer to s, for populating optional fields.
func String(s string) *string { return &s }

// Int64 returns a pointer to v, for populating optional fields.
func Int64(v int64) *int64 { return &v }
