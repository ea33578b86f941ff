// Package encoder turns a sampled subgraph into one vector per node.
package encoder

import (
	"context"
	"errors"

	"github.com/papercomputeco/rxrank/pkg/graph"
)

// ErrEncode is returned when an encoder fails or returns unusable output.
var ErrEncode = errors.New("encoding failed")

// Encoder provides subgraph encoding capabilities.
type Encoder interface {
	// Encode returns one vector per node of sg, in node order.
	Encode(ctx context.Context, sg *graph.Subgraph) ([][]float32, error)

	// Close releases any resources held by the encoder.
	Close() error
}
