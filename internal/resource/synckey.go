package resource

import (
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"strconv"
	"strings"
)

// ErrNoSyncKey is returned when an object lacks the attributes its key needs.
var ErrNoSyncKey = errors.New("sync key cannot be derived")

// SyncKey derives the cross-cloud identity of obj. remoteNetworkID is the
// REMOTE id of the parent network and is ignored for networks.
func SyncKey(obj Object, remoteNetworkID string) (string, error) {
	switch obj.Kind {
	case KindNetwork:
		return NetworkKey(obj)
	case KindSubnet:
		return SubnetKey(obj, remoteNetworkID)
	case KindPort:
		return PortKey(obj, remoteNetworkID)
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrNoSyncKey, obj.Kind)
}

// NetworkKey is network_type, segmentation_id and physical_network joined by
// "_" with empty components dropped.
func NetworkKey(obj Object) (string, error) {
	netType := obj.Attrs.Str("network_type")
	if netType == "" {
		return "", fmt.Errorf("%w: network %s has no network_type", ErrNoSyncKey, obj.ID)
	}
	parts := []string{netType}
	if seg, ok := obj.Attrs.Int("segmentation_id"); ok {
		parts = append(parts, strconv.FormatInt(seg, 10))
	}
	if phys := obj.Attrs.Str("physical_network"); phys != "" {
		parts = append(parts, phys)
	}
	return strings.Join(parts, "_"), nil
}

// SubnetKey is cidr "_" remote parent network id.
func SubnetKey(obj Object, remoteNetworkID string) (string, error) {
	cidr := obj.Attrs.Str("cidr")
	if cidr == "" || remoteNetworkID == "" {
		return "", fmt.Errorf("%w: subnet %s", ErrNoSyncKey, obj.ID)
	}
	return cidr + "_" + remoteNetworkID, nil
}

// PortKey is the port's sorted IPv4 addresses joined by "_", then "_" and the
// remote parent network id.
func PortKey(obj Object, remoteNetworkID string) (string, error) {
	addrs := IPv4Addresses(obj)
	if len(addrs) == 0 || remoteNetworkID == "" {
		return "", fmt.Errorf("%w: port %s", ErrNoSyncKey, obj.ID)
	}
	return strings.Join(addrs, "_") + "_" + remoteNetworkID, nil
}

// IPv4Addresses returns the port's IPv4 fixed addresses in ascending numeric order.
func IPv4Addresses(obj Object) []string {
	var addrs []netip.Addr
	for _, ip := range obj.FixedIPs() {
		addr, err := netip.ParseAddr(ip.IPAddress)
		if err != nil || !addr.Is4() {
			continue
		}
		addrs = append(addrs, addr)
	}
	slices.SortFunc(addrs, func(a, b netip.Addr) int { return a.Compare(b) })
	addrs = slices.Compact(addrs)

	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}
