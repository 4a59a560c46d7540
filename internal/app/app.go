// Package app wires all farevoice subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the interactive chat loop alongside the HTTP
// surface, and Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithInput, WithOutput). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/farevoice/farevoice/internal/config"
	"github.com/farevoice/farevoice/internal/health"
	"github.com/farevoice/farevoice/internal/observe"
	"github.com/farevoice/farevoice/internal/pipeline"
	"github.com/farevoice/farevoice/internal/tools"
	"github.com/farevoice/farevoice/internal/tools/fares"
	"github.com/farevoice/farevoice/internal/tools/mcpbridge"
	"github.com/farevoice/farevoice/internal/transcript"
	"github.com/farevoice/farevoice/internal/voice"
	"github.com/farevoice/farevoice/pkg/audio"
	"github.com/farevoice/farevoice/pkg/audio/execio"
	"github.com/farevoice/farevoice/pkg/provider/image"
	"github.com/farevoice/farevoice/pkg/provider/llm"
	"github.com/farevoice/farevoice/pkg/provider/stt"
	"github.com/farevoice/farevoice/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM      llm.Provider
	TTS      tts.Provider
	STT      stt.Transcriber
	Image    image.Generator
	Player   audio.Player
	Recorder audio.Recorder
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	store    transcript.Store
	registry *tools.Registry
	bridge   *mcpbridge.Bridge
	orch     *pipeline.Orchestrator
	listener *voice.Listener
	server   *http.Server

	input  io.Reader
	output io.Writer
	log    *slog.Logger

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a transcript store instead of creating one from config.
func WithStore(s transcript.Store) Option {
	return func(a *App) { a.store = s }
}

// WithInput sets the chat loop's input stream. Default is os.Stdin.
func WithInput(r io.Reader) Option {
	return func(a *App) { a.input = r }
}

// WithOutput sets the chat loop's output stream. Default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.output = w }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		input:     os.Stdin,
		output:    os.Stdout,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	if providers.LLM == nil {
		return nil, errors.New("app: an LLM provider is required")
	}

	// Transcript store.
	if a.store == nil {
		if dsn := cfg.Transcript.PostgresDSN; dsn != "" {
			pg, err := transcript.NewPostgresStore(ctx, dsn)
			if err != nil {
				return nil, fmt.Errorf("app: connect transcript store: %w", err)
			}
			a.store = pg
			a.closers = append(a.closers, func() error {
				pg.Close()
				return nil
			})
			a.log.Info("transcript store connected", "backend", "postgres")
		} else {
			a.store = transcript.NewMemStore()
			a.log.Info("transcript store created", "backend", "memory")
		}
	}

	// Tool registry: built-in pricing plus any bridged MCP servers.
	a.registry = tools.NewRegistry()
	fareTable := cfg.Fares
	if len(fareTable) == 0 {
		fareTable = nil
	}
	if err := a.registry.Register(fares.NewTool(fares.NewTable(fareTable))); err != nil {
		return nil, fmt.Errorf("app: register pricing tool: %w", err)
	}
	if len(cfg.MCP.Servers) > 0 {
		a.bridge = mcpbridge.New()
		a.closers = append(a.closers, a.bridge.Close)
		for _, srv := range cfg.MCP.Servers {
			err := a.bridge.Connect(ctx, mcpbridge.ServerConfig{
				Name:      srv.Name,
				Transport: srv.Transport,
				Command:   srv.Command,
				Env:       srv.Env,
				URL:       srv.URL,
			}, a.registry)
			if err != nil {
				// A tool server being down must not take the assistant with it.
				a.log.Warn("mcp server unavailable", "server", srv.Name, "error", err)
				continue
			}
			a.log.Info("mcp server bridged", "server", srv.Name)
		}
	}

	metrics := observe.DefaultMetrics()

	systemPrompt := cfg.Assistant.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = config.DefaultSystemPrompt
	}

	player := providers.Player
	if player == nil {
		player = execio.NewPlayer()
	}

	a.orch = pipeline.NewOrchestrator(
		pipeline.NewResolver(providers.LLM, a.registry,
			pipeline.WithSystemPrompt(systemPrompt),
			pipeline.WithTemperature(cfg.Assistant.Temperature),
			pipeline.WithMaxTokens(cfg.Assistant.MaxTokens),
			pipeline.WithResolverMetrics(metrics),
			pipeline.WithResolverLogger(a.log),
		),
		pipeline.NewNarrator(providers.TTS, player,
			pipeline.WithVoice(tts.VoiceProfile{
				ID:          cfg.Assistant.Voice.VoiceID,
				Provider:    cfg.Assistant.Voice.Provider,
				SpeedFactor: cfg.Assistant.Voice.SpeedFactor,
			}),
			pipeline.WithNarratorMetrics(metrics),
			pipeline.WithNarratorLogger(a.log),
		),
		pipeline.NewImageStage(providers.Image,
			pipeline.WithImageMetrics(metrics),
			pipeline.WithImageLogger(a.log),
		),
		a.store,
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(a.log),
	)

	// Voice capture, when a transcriber is configured.
	if providers.STT != nil {
		recorder := providers.Recorder
		if recorder == nil {
			recorder = execio.NewRecorder()
		}
		a.listener = voice.NewListener(recorder, providers.STT,
			voice.WithMetrics(metrics),
			voice.WithLogger(a.log),
		)
	}

	// HTTP surface.
	if cfg.Server.ListenAddr != "" {
		a.server = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           a.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return a, nil
}

// Run executes the chat loop and the HTTP surface until ctx is cancelled or
// the chat loop ends.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.log.Info("http surface listening", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.server.Shutdown(shutdownCtx)
			return ctx.Err()
		})
	}

	g.Go(func() error {
		return a.chatLoop(ctx)
	})

	return g.Wait()
}

// Shutdown stops the HTTP surface and closes all subsystems in order.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		var errs []error
		if a.server != nil {
			if e := a.server.Shutdown(ctx); e != nil && !errors.Is(e, http.ErrServerClosed) {
				errs = append(errs, e)
			}
		}
		for _, c := range a.closers {
			if e := c(); e != nil {
				errs = append(errs, e)
			}
		}
		err = errors.Join(errs...)
	})
	return err
}

// healthCheckers builds the readiness probes for the HTTP surface.
func (a *App) healthCheckers() []health.Checker {
	return []health.Checker{
		{
			Name: "transcript",
			Check: func(ctx context.Context) error {
				_, err := a.store.Snapshot(ctx)
				return err
			},
		},
		{
			Name: "tools",
			Check: func(context.Context) error {
				if len(a.registry.Definitions()) == 0 {
					return errors.New("no tools registered")
				}
				return nil
			},
		},
	}
}
