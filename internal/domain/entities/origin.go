package entities

import (
	"fmt"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
)

// Origin is the channel an order was placed through.
type Origin string

const (
	OriginWeb     Origin = "web"
	OriginPOSCash Origin = "posCash"
	OriginPOSCard Origin = "posCard"
)

func (o Origin) IsPOS() bool {
	return o == OriginPOSCash || o == OriginPOSCard
}

// ParsePOSOrigin accepts only the point-of-sale checkout methods.
func ParsePOSOrigin(method string) (Origin, error) {
	switch o := Origin(method); o {
	case OriginPOSCash, OriginPOSCard:
		return o, nil
	}
	return "", fmt.Errorf("%w: unknown checkout method %q", errs.ErrInvalidRequest, method)
}
