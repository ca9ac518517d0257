//go:build linux

package hardware

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// LANPrefixes returns the IPv4 networks of every non-loopback, non-link-local
// address on the host, masked to their network address.
func LANPrefixes() ([]*net.IPNet, error) {
	addrs, err := netlink.AddrList(nil, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("hardware: list addresses: %w", err)
	}
	seen := make(map[string]bool)
	var nets []*net.IPNet
	for _, a := range addrs {
		if a.IPNet == nil || a.IP.IsLoopback() || a.IP.IsLinkLocalUnicast() {
			continue
		}
		n := &net.IPNet{IP: a.IP.Mask(a.Mask).To4(), Mask: a.Mask}
		if n.IP == nil || seen[n.String()] {
			continue
		}
		seen[n.String()] = true
		nets = append(nets, n)
	}
	return nets, nil
}
