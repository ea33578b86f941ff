// Package testutils holds test doubles shared across package test suites.
package testutils

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/rxrank/pkg/graph"
)

// MockEncoder is a test encoder that counts calls and returns predictable
// vectors: by default node i encodes as Dim copies of float32(i).
type MockEncoder struct {
	Dim int

	// Vectors, when set, overrides the per-node output by node.
	Vectors map[graph.Node][]float32

	// Err causes Encode to fail with this error.
	Err error

	// Block makes Encode wait for ctx to be done or Release to be called.
	Block bool

	calls    atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64

	mu      sync.Mutex
	last    *graph.Subgraph
	release chan struct{}
	once    sync.Once
}

func NewMockEncoder(dim int) *MockEncoder {
	return &MockEncoder{
		Dim:     dim,
		release: make(chan struct{}),
	}
}

func (m *MockEncoder) Encode(ctx context.Context, sg *graph.Subgraph) ([][]float32, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	m.mu.Lock()
	m.last = sg
	m.mu.Unlock()

	if m.Block {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.release:
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}

	out := make([][]float32, len(sg.Nodes))
	for i, node := range sg.Nodes {
		if v, ok := m.Vectors[node]; ok {
			out[i] = v
			continue
		}
		v := make([]float32, m.Dim)
		for j := range v {
			v[j] = float32(i)
		}
		out[i] = v
	}
	return out, nil
}

// Release unblocks every pending and future Encode call.
func (m *MockEncoder) Release() {
	if m.release == nil {
		return
	}
	m.once.Do(func() { close(m.release) })
}

// Calls returns how many times Encode ran.
func (m *MockEncoder) Calls() int64 { return m.calls.Load() }

// Peak returns the highest number of concurrent Encode calls observed.
func (m *MockEncoder) Peak() int64 { return m.peak.Load() }

// Last returns the most recent subgraph passed to Encode.
func (m *MockEncoder) Last() *graph.Subgraph {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *MockEncoder) Close() error {
	m.Release()
	return nil
}
