package resource

import "fmt"

// Fields is the per-kind attribute table.
type Fields struct {
	// Create lists the attributes sent when mirroring a new object.
	Create []string
	// Update lists the attributes that participate in conflict detection and
	// are sent on update.
	Update []string
}

var fieldTable = map[Kind]Fields{
	KindNetwork: {
		Create: []string{"name", "network_type", "physical_network", "segmentation_id", "shared", "admin_state_up"},
		Update: []string{"name", "shared", "admin_state_up"},
	},
	KindSubnet: {
		Create: []string{"name", "network_id", "ip_version", "cidr", "gateway_ip", "enable_dhcp", "dns_nameservers", "allocation_pools"},
		Update: []string{"name", "gateway_ip", "dns_nameservers"},
	},
	KindPort: {
		Create: []string{"name", "network_id", "mac_address", "fixed_ips", "device_id", "device_owner", "admin_state_up"},
		Update: []string{"name", "admin_state_up"},
	},
}

// FieldsFor returns the field table for kind.
func FieldsFor(kind Kind) Fields {
	return fieldTable[kind]
}

// Project returns the subset of attrs named by fields. Absent fields are omitted.
func Project(attrs Attrs, fields []string) Attrs {
	out := make(Attrs, len(fields))
	for _, f := range fields {
		if v, ok := attrs[f]; ok {
			out[f] = cloneValue(v)
		}
	}
	return out
}

// Changed returns the names from fields whose values differ between a and b,
// in field-table order.
func Changed(a, b Attrs, fields []string) []string {
	var out []string
	for _, f := range fields {
		if !Equal(a[f], b[f]) {
			out = append(out, f)
		}
	}
	return out
}

// MaxSnapshotBytes bounds the encoded update_data column.
const MaxSnapshotBytes = 512

// Snapshot encodes the UPDATE_FIELDS of obj for the mapping's update_data
// column. It returns "" when the encoding would exceed MaxSnapshotBytes.
func Snapshot(obj Object) (string, error) {
	data, err := MarshalCanonical(Project(obj.Attrs, FieldsFor(obj.Kind).Update))
	if err != nil {
		return "", fmt.Errorf("snapshot %s %s: %w", obj.Kind, obj.ID, err)
	}
	if len(data) > MaxSnapshotBytes {
		return "", nil
	}
	return string(data), nil
}

// ParseSnapshot decodes an update_data column. An empty column yields nil.
func ParseSnapshot(data string) (Attrs, error) {
	if data == "" {
		return nil, nil
	}
	var a Attrs
	if err := a.UnmarshalJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return a, nil
}
