// Package openai provides a TTS provider backed by the OpenAI speech API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/farevoice/farevoice/pkg/provider/tts"
)

const (
	defaultModel = "tts-1"
	defaultVoice = "onyx"
)

// Provider implements tts.Provider using the OpenAI audio speech endpoint.
// The returned assets are MP3-encoded.
type Provider struct {
	client oai.Client
	model  string
}

// Option is a functional option for configuring the Provider.
type Option func(*config)

// config holds optional configuration for the provider.
type config struct {
	model   string
	baseURL string
	timeout time.Duration
}

// WithModel sets the speech model (e.g., "tts-1", "tts-1-hd").
// Defaults to "tts-1".
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New creates a new OpenAI TTS Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai tts: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Synthesize implements tts.Provider. It requests MP3 speech for text and
// buffers the full asset before returning.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	if text == "" {
		return nil, errors.New("openai tts: text must not be empty")
	}

	voiceID := voice.ID
	if voiceID == "" {
		voiceID = defaultVoice
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model: oai.SpeechModel(p.model),
		Voice: oai.AudioSpeechNewParamsVoice(voiceID),
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts: speech request: %w", err)
	}
	defer resp.Body.Close()

	asset, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read asset: %w", err)
	}
	if len(asset) == 0 {
		return nil, errors.New("openai tts: empty asset in response")
	}
	return asset, nil
}
