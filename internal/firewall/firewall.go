// Package firewall restricts the daemon's unauthenticated TCP API port to
// loopback and the local networks with an nftables table.
package firewall

import (
	"fmt"
	"net"
)

// DefaultAPIPort is the daemon's TCP API port.
const DefaultAPIPort = 4403

// TableName is the nftables table owned by meshcfg.
const TableName = "meshcfg"

// ChainName is the input chain inside TableName.
const ChainName = "api-input"

// Controller abstracts nftables operations for testability.
type Controller interface {
	// Restrict replaces the table with rules accepting port only from
	// loopback and the allowed networks. Restrict is idempotent.
	Restrict(port int, allowed []*net.IPNet) error

	// Unrestrict deletes the table. Deleting a missing table returns nil.
	Unrestrict() error

	// IsRestricted reports whether the table exists.
	IsRestricted() (bool, error)
}

// Rule is a single packet filter rule on the API port.
type Rule struct {
	Interface string     // input interface name, empty for any
	Source    *net.IPNet // source network, nil for any
	Port      int
	Accept    bool // accept when true, drop otherwise
}

// Rules returns the ordered rule set for port: loopback and each allowed
// network are accepted, everything else is dropped.
func Rules(port int, allowed []*net.IPNet) ([]Rule, error) {
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("firewall: invalid port %d", port)
	}
	rules := []Rule{{Interface: "lo", Port: port, Accept: true}}
	for _, n := range allowed {
		if n == nil || n.IP.To4() == nil {
			continue
		}
		rules = append(rules, Rule{Source: n, Port: port, Accept: true})
	}
	return append(rules, Rule{Port: port}), nil
}
