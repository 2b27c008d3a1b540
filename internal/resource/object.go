package resource

import (
	"net/netip"
	"strconv"
)

// Object is one network, subnet or port as reported by a cloud.
type Object struct {
	Kind  Kind
	ID    string
	Attrs Attrs
}

// NewObject builds an Object, taking the id from attrs["id"] when id is empty.
func NewObject(kind Kind, id string, attrs Attrs) Object {
	if attrs == nil {
		attrs = Attrs{}
	}
	if id == "" {
		id = attrs.Str("id")
	}
	return Object{Kind: kind, ID: id, Attrs: attrs}
}

// Str returns the string attribute key, or "" when absent or not a string.
func (a Attrs) Str(key string) string {
	if s, ok := a[key].(String); ok {
		return string(s)
	}
	return ""
}

// Int returns the integer attribute key. Numeric strings are accepted since
// some APIs report segmentation ids as strings.
func (a Attrs) Int(key string) (int64, bool) {
	switch v := a[key].(type) {
	case Int:
		return int64(v), true
	case String:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Bool returns the boolean attribute key.
func (a Attrs) Bool(key string) (bool, bool) {
	b, ok := a[key].(Bool)
	return bool(b), ok
}

// List returns the list attribute key.
func (a Attrs) List(key string) List {
	l, _ := a[key].(List)
	return l
}

// FixedIP is one entry of a port's fixed_ips list.
type FixedIP struct {
	SubnetID  string
	IPAddress string
}

// IsIPv4 reports whether the address is a dotted IPv4 address.
func (f FixedIP) IsIPv4() bool {
	addr, err := netip.ParseAddr(f.IPAddress)
	return err == nil && addr.Is4()
}

// FixedIPs decodes the port's fixed_ips attribute. Malformed entries are skipped.
func (o Object) FixedIPs() []FixedIP {
	var out []FixedIP
	for _, v := range o.Attrs.List("fixed_ips") {
		entry, ok := v.(Attrs)
		if !ok {
			continue
		}
		out = append(out, FixedIP{
			SubnetID:  entry.Str("subnet_id"),
			IPAddress: entry.Str("ip_address"),
		})
	}
	return out
}

// FixedIPsValue encodes fixed IPs back into an attribute value.
func FixedIPsValue(ips []FixedIP) List {
	out := make(List, 0, len(ips))
	for _, ip := range ips {
		entry := Attrs{"ip_address": String(ip.IPAddress)}
		if ip.SubnetID != "" {
			entry["subnet_id"] = String(ip.SubnetID)
		}
		out = append(out, entry)
	}
	return out
}

// NetworkID returns the parent network id of a subnet or port.
func (o Object) NetworkID() string {
	return o.Attrs.Str("network_id")
}
