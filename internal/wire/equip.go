package wire

// IotEquipInfo locates a physical measurement point. Station, equipment
// type and equipment id are required. The five optional fields subdivide
// a battery asset down to cell level; any suffix may be absent to match
// the actual depth of the sensor. The schema does not enforce ordering
// between the optional levels.
type IotEquipInfo struct {
	StationID     string
	EquipmentType string
	EquipmentID   string
	Cab           *string
	Stack         *string
	Cluster       *string
	Pack          *string
	Cell          *string
}

// HasCab reports whether the cabinet level is present.
func (e *IotEquipInfo) HasCab() bool { return e != nil && e.Cab != nil }

// HasStack reports whether the stack level is present.
func (e *IotEquipInfo) HasStack() bool { return e != nil && e.Stack != nil }

// HasCluster reports whether the cluster level is present.
func (e *IotEquipInfo) HasCluster() bool { return e != nil && e.Cluster != nil }

// HasPack reports whether the pack level is present.
func (e *IotEquipInfo) HasPack() bool { return e != nil && e.Pack != nil }

// HasCell reports whether the cell level is present.
func (e *IotEquipInfo) HasCell() bool { return e != nil && e.Cell != nil }

// GetCab returns the cabinet id, or "" when absent.
func (e *IotEquipInfo) GetCab() string { return strValue(e.Cab) }

// GetStack returns the stack id, or "" when absent.
func (e *IotEquipInfo) GetStack() string { return strValue(e.Stack) }

// GetCluster returns the cluster id, or "" when absent.
func (e *IotEquipInfo) GetCluster() string { return strValue(e.Cluster) }

// GetPack returns the pack id, or "" when absent.
func (e *IotEquipInfo) GetPack() string { return strValue(e.Pack) }

// GetCell returns the cell id, or "" when absent.
func (e *IotEquipInfo) GetCell() string { return strValue(e.Cell) }

func strValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (e *IotEquipInfo) validate() error {
	if e == nil {
		return missingField("IotEquipInfo", "equip_info")
	}
	if e.StationID == "" {
		return missingField("IotEquipInfo", "station_id")
	}
	if e.EquipmentType == "" {
		return missingField("IotEquipInfo", "equipment_type")
	}
	if e.EquipmentID == "" {
		return missingField("IotEquipInfo", "equipment_id")
	}
	return nil
}

// IotKvPair is one named, timestamped, classified measurement. All four
// fields are required; the timestamp is the measurement time in
// milliseconds since epoch, not the receipt time. The pair carries no
// measured value on the wire; producers attach values out of band.
type IotKvPair struct {
	EquipInfo    *IotEquipInfo
	Timestamp    int64
	PropertyName string
	ValueType    ValueType
}

func (p *IotKvPair) validate() error {
	if p == nil {
		return missingField("IotKvPair", "equip_info")
	}
	if p.EquipInfo == nil {
		return missingField("IotKvPair", "equip_info")
	}
	if err := p.EquipInfo.validate(); err != nil {
		return err
	}
	if p.PropertyName == "" {
		return missingField("IotKvPair", "property_name")
	}
	if !p.ValueType.Valid() {
		return malformedField("IotKvPair", "value_type", "unknown ordinal")
	}
	return nil
}
