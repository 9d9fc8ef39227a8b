package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ember-labs/relay/core"
	"github.com/ember-labs/relay/gateway"
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitProvider   = 2
	ExitNetwork    = 3
)

func (a *App) newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send a chat request through a fallback chain",
		Long: `Send a one-shot chat request through a configured route.

Examples:
  relay chat --prompt "Hello"
  relay chat --route premium --prompt "Hello" --json`,
		RunE: a.runChat,
	}

	cmd.Flags().StringVar(&a.chatRoute, "route", gateway.DefaultRoute, "route to send through")
	cmd.Flags().StringVar(&a.chatPrompt, "prompt", "", "user message (required)")
	cmd.Flags().StringVar(&a.chatSystem, "system", "", "system message")
	cmd.Flags().Float32Var(&a.chatTemperature, "temperature", 0, "temperature (0 = provider default)")
	cmd.Flags().IntVar(&a.chatMaxTokens, "max-tokens", 0, "max tokens (0 = provider default)")

	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func (a *App) runChat(cmd *cobra.Command, args []string) error {
	if err := a.cfg.Validate(); err != nil {
		return exitWithCode(ExitValidation, err)
	}

	route, ok := a.cfg.Routes[a.chatRoute]
	if !ok {
		return exitWithCode(ExitValidation,
			fmt.Errorf("unknown route %q: configure it under routes in the config file", a.chatRoute))
	}

	ks, err := a.openKeystore()
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to open keystore: %w", err))
	}
	resolve := a.buildResolver(a.cfg, ks)

	var messages []core.Message
	if a.chatSystem != "" {
		messages = append(messages, core.Message{Role: core.RoleSystem, Content: a.chatSystem})
	}
	messages = append(messages, core.Message{Role: core.RoleUser, Content: a.chatPrompt})

	work := func(ctx context.Context, target core.Target) (*core.ChatResponse, error) {
		p, err := resolve(target.Provider)
		if err != nil {
			return nil, err
		}
		return p.Chat(ctx, &core.ChatRequest{
			Model:       core.ModelID(target.Model),
			Messages:    messages,
			Temperature: a.chatTemperature,
			MaxTokens:   a.chatMaxTokens,
		})
	}

	resp, attempts, err := core.RunFallback(cmd.Context(), route.Chain(), work)
	if err != nil {
		return a.handleChatError(err)
	}

	if a.verbose {
		for _, attempt := range attempts {
			fmt.Fprintf(a.stderr, "failed over from %s (%s): %s\n",
				attempt.Target, attempt.Reason, attempt.Message)
		}
	}

	if a.jsonOutput {
		return a.outputJSON(resp, attempts)
	}

	fmt.Fprintf(a.stdout, "> %s\n", a.chatPrompt)
	fmt.Fprintln(a.stdout, resp.Output)
	return nil
}

// handleChatError renders a terminal fallback error and maps its class to an
// exit code: operator mistakes exit 1, exhausted or network trouble exits 3,
// anything the provider refused exits 2.
func (a *App) handleChatError(err error) error {
	class := core.Classify(err)

	if a.jsonOutput {
		a.outputErrorJSON(err, class)
	} else {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		var failure *core.Failure
		if errors.As(err, &failure) && failure.RequestID != "" {
			fmt.Fprintf(a.stderr, "  Provider: %s, Request ID: %s\n", failure.Provider, failure.RequestID)
		}
	}

	switch class {
	case core.ClassConfig:
		return exitWithCode(ExitValidation, err)
	case core.ClassTransientNetwork, core.ClassRateLimit:
		return exitWithCode(ExitNetwork, err)
	default:
		var exhausted *core.ExhaustedError
		if errors.As(err, &exhausted) {
			return exitWithCode(ExitNetwork, err)
		}
		return exitWithCode(ExitProvider, err)
	}
}

func (a *App) outputJSON(resp *core.ChatResponse, attempts []core.Attempt) error {
	output := map[string]interface{}{
		"id":     resp.ID,
		"model":  resp.Model,
		"output": resp.Output,
		"usage": map[string]int{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
	}
	if len(attempts) > 0 {
		views := make([]map[string]string, 0, len(attempts))
		for _, attempt := range attempts {
			views = append(views, map[string]string{
				"target": attempt.Target.String(),
				"reason": attempt.Reason.String(),
			})
		}
		output["attempts"] = views
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func (a *App) outputErrorJSON(err error, class core.Class) {
	output := map[string]interface{}{
		"error": map[string]interface{}{
			"class":   class.String(),
			"message": err.Error(),
		},
	}

	enc := json.NewEncoder(a.stderr)
	enc.SetIndent("", "  ")
	_ = enc.Encode(output)
}

// exitError wraps an error with an exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) ExitCode() int {
	return e.code
}

func exitWithCode(code int, err error) error {
	return &exitError{code: code, err: err}
}
