//go:build !linux

package hardware

import (
	"errors"
	"net"
)

// LANPrefixes is only implemented on linux.
func LANPrefixes() ([]*net.IPNet, error) {
	return nil, errors.New("hardware: address listing is only supported on linux")
}
