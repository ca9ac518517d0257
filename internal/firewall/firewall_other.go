//go:build !linux

package firewall

import (
	"errors"
	"log/slog"
	"net"
)

var errUnsupported = errors.New("firewall: nftables is only supported on linux")

// NftablesController is unavailable on this platform.
type NftablesController struct{}

// NewNftablesController returns a controller whose methods always fail.
func NewNftablesController(*slog.Logger) *NftablesController {
	return &NftablesController{}
}

func (*NftablesController) Restrict(int, []*net.IPNet) error { return errUnsupported }
func (*NftablesController) Unrestrict() error                { return errUnsupported }
func (*NftablesController) IsRestricted() (bool, error)      { return false, errUnsupported }
