// Package mapping resolves raw gateway tag keys to equipment locators
// and value classifications.
package mapping

import (
	"fmt"
	"strings"

	"iot-collector/internal/wire"
)

// Point is the resolved meaning of one tag key. Empty locator parts are
// absent levels.
type Point struct {
	Cab       string
	Stack     string
	Cluster   string
	Pack      string
	Cell      string
	Property  string
	ValueType wire.ValueType
}

// Locator builds the wire locator for this point under the given equipment.
func (p Point) Locator(stationID, equipmentType, equipmentID string) *wire.IotEquipInfo {
	equip := &wire.IotEquipInfo{
		StationID:     stationID,
		EquipmentType: equipmentType,
		EquipmentID:   equipmentID,
	}
	if p.Cab != "" {
		equip.Cab = wire.String(p.Cab)
	}
	if p.Stack != "" {
		equip.Stack = wire.String(p.Stack)
	}
	if p.Cluster != "" {
		equip.Cluster = wire.String(p.Cluster)
	}
	if p.Pack != "" {
		equip.Pack = wire.String(p.Pack)
	}
	if p.Cell != "" {
		equip.Cell = wire.String(p.Cell)
	}
	return equip
}

// ParseValueType parses a configured value type name.
func ParseValueType(value string) (wire.ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "signal":
		return wire.ValueTypeSignal, nil
	case "telemeter":
		return wire.ValueTypeTelemeter, nil
	case "standby":
		return wire.ValueTypeStandby, nil
	}
	return 0, fmt.Errorf("mapping: unknown value type %q", value)
}

// Resolver resolves tag keys, consulting explicit mappings first and the
// BMS naming convention second. Keys matching neither resolve to an
// equipment-level telemeter point named after the key itself.
type Resolver struct {
	table *Table
}

// NewResolver constructs a resolver. A nil table means convention only.
func NewResolver(table *Table) *Resolver {
	return &Resolver{table: table}
}

// Resolve maps a tag key to a point.
func (r *Resolver) Resolve(tagKey string) Point {
	if r != nil && r.table != nil {
		if point, ok := r.table.Lookup(tagKey); ok {
			return point
		}
	}
	if point, ok := resolveConvention(tagKey); ok {
		return point
	}
	return Point{Property: tagKey, ValueType: wire.ValueTypeTelemeter}
}

// resolveConvention parses BMS tag keys of the forms
// BMS_pack_<n>_ele_<prop>, BMS_pack_<n>_sts_..., BMS_pack_<n>_input_...,
// BMS_pack_<n>_alarm_<code>, BMS_cell_<pack>_<u|temp>_<cell> and the
// pack/cell IoStatus markers.
func resolveConvention(tagKey string) (Point, bool) {
	tokens := strings.Split(tagKey, "_")
	if len(tokens) < 3 || tokens[0] != "BMS" {
		return Point{}, false
	}

	// BMS_pack_IoStatus / BMS_cell_IoStatus
	if len(tokens) == 3 && tokens[2] == "IoStatus" {
		return Point{Property: tokens[1] + "_IoStatus", ValueType: wire.ValueTypeSignal}, true
	}

	if len(tokens) < 5 {
		return Point{}, false
	}

	switch tokens[1] {
	case "pack":
		point := Point{Pack: tokens[2]}
		switch tokens[3] {
		case "ele":
			point.Property = strings.Join(tokens[4:], "_")
			point.ValueType = wire.ValueTypeTelemeter
		case "sts", "input":
			point.Property = strings.Join(tokens[3:], "_")
			point.ValueType = wire.ValueTypeSignal
		case "alarm":
			point.Property = strings.Join(tokens[3:], "_")
			point.ValueType = wire.ValueTypeSignal
		default:
			return Point{}, false
		}
		return point, true
	case "cell":
		if tokens[3] != "u" && tokens[3] != "temp" {
			return Point{}, false
		}
		return Point{
			Pack:      tokens[2],
			Cell:      tokens[4],
			Property:  tokens[3],
			ValueType: wire.ValueTypeTelemeter,
		}, true
	}
	return Point{}, false
}
