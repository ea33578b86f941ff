// Package encoderutils builds an Encoder from configuration.
package encoderutils

import (
	"fmt"
	"time"

	"github.com/papercomputeco/rxrank/pkg/encoder"
)

const (
	ProviderPropagation = "propagation"
	ProviderHTTP        = "http"
)

type NewEncoderOpts struct {
	ProviderType string
	TargetURL    string
	Timeout      time.Duration

	// Vectors backs the propagation encoder.
	Vectors encoder.VectorSource
}

func NewEncoder(o *NewEncoderOpts) (encoder.Encoder, error) {
	switch o.ProviderType {
	case ProviderPropagation, "":
		if o.Vectors == nil {
			return nil, fmt.Errorf("propagation encoder requires stored vectors")
		}
		return encoder.NewPropagation(o.Vectors), nil
	case ProviderHTTP:
		return encoder.NewHTTP(encoder.HTTPConfig{
			BaseURL: o.TargetURL,
			Timeout: o.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported encoder provider: %s", o.ProviderType)
	}
}
