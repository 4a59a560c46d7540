package app

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/farevoice/farevoice/internal/voice"
)

// voicePrefix marks turns whose text came from speech capture.
const voicePrefix = "🎤 "

// chatLoop reads commands and user messages from the input stream until EOF,
// /quit, or context cancellation.
//
// Recognized commands:
//
//	/voice  capture one utterance and submit it as the user message
//	/clear  reset the conversation
//	/quit   exit the loop
//
// Anything else is submitted to the pipeline as a typed user message.
func (a *App) chatLoop(ctx context.Context) error {
	a.printf("farevoice ready. Type a message, or /voice, /clear, /quit.")

	scanner := bufio.NewScanner(a.input)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(a.output, "> ")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("app: read input: %w", err)
				}
				return nil
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
				continue
			case line == "/quit":
				return nil
			case line == "/clear":
				if err := a.orch.Clear(ctx); err != nil {
					a.printf("clear failed: %v", err)
					continue
				}
				a.printf("conversation cleared")
			case line == "/voice":
				a.handleVoice(ctx)
			default:
				a.submit(ctx, line)
			}
		}
	}
}

// handleVoice captures one utterance and routes it into the pipeline. Capture
// markers are surfaced as status only; no user turn is committed for them.
func (a *App) handleVoice(ctx context.Context) {
	if a.listener == nil {
		a.printf("voice capture is not configured")
		return
	}

	text := a.listener.Listen(ctx)
	if voice.IsMarker(text) {
		a.orch.SetStatus(text)
		a.printf("[%s]", text)
		return
	}
	a.printf("heard: %s", text)
	a.submit(ctx, voicePrefix+text)
}

// submit runs one user message through the pipeline and prints the outcome.
func (a *App) submit(ctx context.Context, text string) {
	reply, err := a.orch.RespondTo(ctx, text)
	if err != nil {
		a.printf("error: %v", err)
		return
	}
	a.printf("%s", reply)
	a.printf("[%s]", a.orch.Status())
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.output, format+"\n", args...)
}
