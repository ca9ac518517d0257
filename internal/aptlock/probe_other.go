//go:build !linux

package aptlock

import (
	"context"
	"errors"
)

type fcntlProbe struct{}

func (fcntlProbe) Holder(context.Context, string) (bool, int, error) {
	return true, 0, errors.New("aptlock: fcntl probe is only supported on linux")
}
