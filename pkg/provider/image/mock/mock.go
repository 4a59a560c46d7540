// Package mock provides a test double for the image.Generator interface.
package mock

import (
	"context"
	"sync"

	"github.com/farevoice/farevoice/pkg/provider/image"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	// Ctx is the context passed to Generate.
	Ctx context.Context
	// Prompt is the prompt passed to Generate.
	Prompt string
}

// Generator is a mock implementation of image.Generator.
type Generator struct {
	mu sync.Mutex

	// Asset is returned by Generate.
	Asset []byte

	// Err, if non-nil, is returned as the error from Generate.
	Err error

	// GenerateCalls records every call to Generate in order.
	GenerateCalls []GenerateCall
}

// Compile-time check that *Generator satisfies image.Generator.
var _ image.Generator = (*Generator)(nil)

// Generate records the call and returns the configured asset or error.
func (g *Generator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.GenerateCalls = append(g.GenerateCalls, GenerateCall{Ctx: ctx, Prompt: prompt})
	if g.Err != nil {
		return nil, g.Err
	}
	return g.Asset, nil
}

// CallCount returns the number of recorded Generate calls.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.GenerateCalls)
}
