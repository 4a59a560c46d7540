// Package image defines the Generator interface for image generation backends.
//
// A Generator wraps a text-to-image service (e.g., DALL·E). The image stage
// treats generated images as a decorative side channel, so the interface is a
// single batch call with no streaming or progress reporting.
//
// Implementations must be safe for concurrent use.
package image

import "context"

// Generator is the abstraction over any image generation backend.
type Generator interface {
	// Generate renders an image for the given textual prompt and returns the
	// encoded image bytes (PNG unless the implementation documents otherwise).
	//
	// Returns an error if generation fails or ctx is cancelled. Callers in the
	// pipeline swallow these errors; they must still be descriptive for logs.
	Generate(ctx context.Context, prompt string) ([]byte, error)
}
