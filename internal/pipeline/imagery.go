package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/farevoice/farevoice/internal/observe"
	"github.com/farevoice/farevoice/internal/transcript"
	"github.com/farevoice/farevoice/pkg/provider/image"
)

// ImageStage renders a decorative destination image after a turn has been
// committed. It only ever reads the transcript; failures are swallowed
// because the image is an enhancement, not core content.
type ImageStage struct {
	generator image.Generator
	metrics   *observe.Metrics
	log       *slog.Logger
}

// ImageStageOption is a functional option for configuring an ImageStage.
type ImageStageOption func(*ImageStage)

// WithImageMetrics attaches metric instruments to the stage.
func WithImageMetrics(m *observe.Metrics) ImageStageOption {
	return func(s *ImageStage) {
		s.metrics = m
	}
}

// WithImageLogger sets the stage's logger. Default is slog.Default.
func WithImageLogger(log *slog.Logger) ImageStageOption {
	return func(s *ImageStage) {
		s.log = log
	}
}

// NewImageStage returns an ImageStage over the given generator.
func NewImageStage(generator image.Generator, opts ...ImageStageOption) *ImageStage {
	s := &ImageStage{
		generator: generator,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Render scans the committed transcript newest-first for the most recent
// turn's destination and generates an image for it. A transcript without a
// destination, or a generation failure, yields nil — never an error.
func (s *ImageStage) Render(ctx context.Context, turns []transcript.Turn) []byte {
	if s.generator == nil {
		return nil
	}
	destination := transcript.LatestDestination(turns)
	if destination == "" {
		return nil
	}

	start := time.Now()
	asset, err := s.generator.Generate(ctx, destinationPrompt(destination))
	if s.metrics != nil {
		s.metrics.RecordStageDuration(ctx, s.metrics.ImageDuration, time.Since(start).Seconds())
	}
	if err != nil {
		s.metrics.RecordProviderError(ctx, "image", "generate")
		s.log.Debug("image generation failed", "destination", destination, "error", err)
		return nil
	}
	return asset
}

// destinationPrompt builds the generation prompt for a destination city.
func destinationPrompt(city string) string {
	return fmt.Sprintf(
		"An image representing a vacation in %s, showing tourist spots and everything unique about %s, in a vibrant pop-art style",
		city, city,
	)
}
