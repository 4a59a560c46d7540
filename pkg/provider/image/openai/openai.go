// Package openai provides an image generator backed by the OpenAI images API.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/farevoice/farevoice/pkg/provider/image"
)

const (
	defaultModel = "dall-e-3"
	defaultSize  = "1024x1024"
)

// Compile-time assertion that Generator implements image.Generator.
var _ image.Generator = (*Generator)(nil)

// Option is a functional option for configuring a Generator.
type Option func(*config)

// config holds optional configuration for the generator.
type config struct {
	model   string
	size    string
	baseURL string
}

// WithModel sets the image model (e.g., "dall-e-3"). Defaults to "dall-e-3".
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithSize sets the output image size (e.g., "1024x1024"). Defaults to
// "1024x1024".
func WithSize(size string) Option {
	return func(c *config) {
		c.size = size
	}
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// Generator implements image.Generator using the OpenAI images endpoint.
type Generator struct {
	client oai.Client
	model  string
	size   string
}

// New creates a new OpenAI image Generator. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Generator, error) {
	if apiKey == "" {
		return nil, errors.New("openai image: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel, size: defaultSize}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &Generator{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
		size:   cfg.size,
	}, nil
}

// Generate implements image.Generator. It requests a single base64-encoded
// image and returns the decoded bytes.
func (g *Generator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if prompt == "" {
		return nil, errors.New("openai image: prompt must not be empty")
	}

	resp, err := g.client.Images.Generate(ctx, oai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          oai.ImageModel(g.model),
		Size:           oai.ImageGenerateParamsSize(g.size),
		ResponseFormat: oai.ImageGenerateParamsResponseFormatB64JSON,
		N:              param.NewOpt(int64(1)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai image: generate: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai image: empty data in response")
	}

	decoded, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("openai image: decode b64: %w", err)
	}
	return decoded, nil
}
