//go:build linux

package firewall

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"
)

// NftablesController implements Controller with the google/nftables
// netlink library. It owns a single IPv4 filter table.
type NftablesController struct {
	logger *slog.Logger
}

// NewNftablesController returns a new NftablesController.
func NewNftablesController(logger *slog.Logger) *NftablesController {
	return &NftablesController{logger: logger.With("component", "firewall")}
}

func (c *NftablesController) Restrict(port int, allowed []*net.IPNet) error {
	rules, err := Rules(port, allowed)
	if err != nil {
		return err
	}

	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("firewall: nftables: restrict: %w", err)
	}

	table := conn.AddTable(&nftables.Table{
		Family: nftables.TableFamilyIPv4,
		Name:   TableName,
	})
	accept := nftables.ChainPolicyAccept
	chain := conn.AddChain(&nftables.Chain{
		Name:     ChainName,
		Table:    table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookInput,
		Priority: nftables.ChainPriorityFilter,
		Policy:   &accept,
	})
	conn.FlushChain(chain)

	for _, rule := range rules {
		conn.AddRule(&nftables.Rule{
			Table: table,
			Chain: chain,
			Exprs: buildRuleExprs(rule),
		})
	}

	if err := conn.Flush(); err != nil {
		return fmt.Errorf("firewall: nftables: restrict port %d: %w", port, err)
	}
	c.logger.Info("api port restricted", "port", port, "rules", len(rules))
	return nil
}

func (c *NftablesController) Unrestrict() error {
	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("firewall: nftables: unrestrict: %w", err)
	}
	table, err := findTable(conn)
	if err != nil {
		return fmt.Errorf("firewall: nftables: unrestrict: %w", err)
	}
	if table == nil {
		c.logger.Debug("nftables table not found, nothing to delete", "table", TableName)
		return nil
	}
	conn.DelTable(table)
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("firewall: nftables: unrestrict: %w", err)
	}
	c.logger.Info("api port restriction removed")
	return nil
}

func (c *NftablesController) IsRestricted() (bool, error) {
	conn, err := nftables.New()
	if err != nil {
		return false, fmt.Errorf("firewall: nftables: %w", err)
	}
	table, err := findTable(conn)
	if err != nil {
		return false, fmt.Errorf("firewall: nftables: %w", err)
	}
	return table != nil, nil
}

func findTable(conn *nftables.Conn) (*nftables.Table, error) {
	tables, err := conn.ListTablesOfFamily(nftables.TableFamilyIPv4)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if t.Name == TableName {
			return t, nil
		}
	}
	return nil, nil
}

// buildRuleExprs converts a Rule into nftables match expressions and a verdict.
func buildRuleExprs(rule Rule) []expr.Any {
	var exprs []expr.Any

	if rule.Interface != "" {
		exprs = append(exprs,
			&expr.Meta{Key: expr.MetaKeyIIFNAME, Register: 1},
			&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: ifaceNameBytes(rule.Interface)},
		)
	}

	if rule.Source != nil {
		exprs = append(exprs, buildSourceMatchExprs(rule.Source)...)
	}

	exprs = append(exprs,
		&expr.Meta{Key: expr.MetaKeyL4PROTO, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: []byte{unix.IPPROTO_TCP}},
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseTransportHeader,
			Offset:       2, // TCP destination port offset
			Len:          2,
		},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: portBytes(uint16(rule.Port))},
		&expr.Counter{},
	)

	if rule.Accept {
		return append(exprs, &expr.Verdict{Kind: expr.VerdictAccept})
	}
	return append(exprs, &expr.Verdict{Kind: expr.VerdictDrop})
}

// buildSourceMatchExprs matches the IPv4 source address (header offset 12)
// against n, using a mask unless n is a single host.
func buildSourceMatchExprs(n *net.IPNet) []expr.Any {
	payload := &expr.Payload{
		DestRegister: 1,
		Base:         expr.PayloadBaseNetworkHeader,
		Offset:       12,
		Len:          4,
	}
	if ones, _ := n.Mask.Size(); ones == 32 {
		return []expr.Any{
			payload,
			&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: n.IP.To4()},
		}
	}
	mask := net.IP(n.Mask).To4()
	if mask == nil {
		mask = net.IP(n.Mask[len(n.Mask)-4:])
	}
	return []expr.Any{
		payload,
		&expr.Bitwise{
			SourceRegister: 1,
			DestRegister:   1,
			Len:            4,
			Mask:           []byte(mask),
			Xor:            []byte{0x00, 0x00, 0x00, 0x00},
		},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: n.IP.Mask(n.Mask).To4()},
	}
}

// portBytes encodes a port number as 2 big-endian bytes.
func portBytes(port uint16) []byte {
	return []byte{byte(port >> 8), byte(port)}
}

// ifaceNameBytes returns the interface name NUL-terminated for IIFNAME matching.
func ifaceNameBytes(name string) []byte {
	buf := make([]byte, len(name)+1)
	copy(buf, name)
	return buf
}
