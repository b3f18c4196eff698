// Package escalation decides, once per run, what happens when a volume cannot
// be read for lack of privilege: restart elevated, fall back to traversal, or
// skip the volume.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrElevationUnsupported is returned by the host helpers on platforms without
// an elevation mechanism.
var ErrElevationUnsupported = errors.New("elevation is not supported on this platform")

// State of the coordinator. It only moves forward.
type State int

const (
	StateIdle State = iota
	StatePrompting
	StateUserAccepted
	StateUserDeclined
	StateAutoSkipped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePrompting:
		return "prompting"
	case StateUserAccepted:
		return "user_accepted"
	case StateUserDeclined:
		return "user_declined"
	case StateAutoSkipped:
		return "auto_skipped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Choice is the user's answer to the elevation prompt.
type Choice int

const (
	ChoiceElevate Choice = iota
	ChoiceFallback
	ChoiceSkip
)

// Outcome tells a caller what to do with its volume.
type Outcome int

const (
	// OutcomeFallback indexes the volume by directory traversal.
	OutcomeFallback Outcome = iota
	// OutcomeRestart means an elevated restart was requested; the caller
	// should stop building.
	OutcomeRestart
	// OutcomeSkip leaves the volume unindexed.
	OutcomeSkip
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFallback:
		return "fallback"
	case OutcomeRestart:
		return "restart"
	case OutcomeSkip:
		return "skip"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// PromptRequest describes why the user is being asked.
type PromptRequest struct {
	Volume string
	Reason string
}

// Prompter asks the user once and blocks until answered.
type Prompter interface {
	Prompt(ctx context.Context, req PromptRequest) (Choice, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, req PromptRequest) (Choice, error)

// Prompt calls f(ctx, req).
func (f PrompterFunc) Prompt(ctx context.Context, req PromptRequest) (Choice, error) {
	return f(ctx, req)
}

// Restarter asks the OS to start this program again with higher privilege.
type Restarter interface {
	RequestRestart(ctx context.Context) error
}

// RestarterFunc adapts a function to Restarter.
type RestarterFunc func(ctx context.Context) error

// RequestRestart calls f(ctx).
func (f RestarterFunc) RequestRestart(ctx context.Context) error { return f(ctx) }

// Options are fixed for the lifetime of a coordinator.
type Options struct {
	// SkipElevation never prompts and falls back instead.
	SkipElevation bool
	// AlreadyElevated means prompting cannot help.
	AlreadyElevated bool
}

// Coordinator is shared by all volume builds of one run. The first access
// denied failure decides the outcome; every other caller receives the same one.
type Coordinator struct {
	opts      Options
	prompter  Prompter
	restarter Restarter
	log       zerolog.Logger

	mu      sync.Mutex
	state   State
	outcome Outcome
	prompts int
	done    chan struct{}
}

// NewCoordinator creates a coordinator in StateIdle.
func NewCoordinator(opts Options, prompter Prompter, restarter Restarter, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		opts:      opts,
		prompter:  prompter,
		restarter: restarter,
		log:       log.With().Str("component", "escalation").Logger(),
		done:      make(chan struct{}),
	}
}

// HandleAccessDenied returns what to do with volume after it failed with
// access denied. The first caller prompts (unless skipping is configured);
// concurrent and later callers wait for and share that decision. A non-nil
// error is only returned when ctx ends first.
func (c *Coordinator) HandleAccessDenied(ctx context.Context, volume string) (Outcome, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		done := c.done
		c.mu.Unlock()
		select {
		case <-done:
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.outcome, nil
		case <-ctx.Done():
			return OutcomeSkip, ctx.Err()
		}
	}

	if c.opts.SkipElevation || c.opts.AlreadyElevated || c.prompter == nil {
		c.finishLocked(StateAutoSkipped, OutcomeFallback)
		c.mu.Unlock()
		c.log.Info().
			Str("volume", volume).
			Bool("skip_elevation", c.opts.SkipElevation).
			Bool("already_elevated", c.opts.AlreadyElevated).
			Msg("Access denied, falling back without prompting")
		return OutcomeFallback, nil
	}

	c.state = StatePrompting
	c.prompts++
	c.mu.Unlock()

	state, outcome, err := c.decide(ctx, volume)

	c.mu.Lock()
	c.finishLocked(state, outcome)
	c.mu.Unlock()

	c.log.Info().
		Str("volume", volume).
		Stringer("state", state).
		Stringer("outcome", outcome).
		Msg("Escalation decided")
	return outcome, err
}

func (c *Coordinator) decide(ctx context.Context, volume string) (State, Outcome, error) {
	choice, err := c.prompter.Prompt(ctx, PromptRequest{
		Volume: volume,
		Reason: fmt.Sprintf("reading the change journal of %s requires administrator rights", volume),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StateUserDeclined, OutcomeSkip, ctxErr
		}
		c.log.Warn().Err(err).Msg("Prompt failed, falling back")
		return StateUserDeclined, OutcomeFallback, nil
	}

	switch choice {
	case ChoiceElevate:
		if c.restarter == nil {
			c.log.Warn().Msg("No restarter configured, falling back")
			return StateUserDeclined, OutcomeFallback, nil
		}
		if err := c.restarter.RequestRestart(ctx); err != nil {
			c.log.Warn().Err(err).Msg("Elevated restart failed, falling back")
			return StateUserDeclined, OutcomeFallback, nil
		}
		return StateUserAccepted, OutcomeRestart, nil
	case ChoiceSkip:
		return StateUserDeclined, OutcomeSkip, nil
	default:
		return StateUserDeclined, OutcomeFallback, nil
	}
}

func (c *Coordinator) finishLocked(state State, outcome Outcome) {
	c.state = state
	c.outcome = outcome
	close(c.done)
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PromptCount returns how many times the prompter was invoked.
func (c *Coordinator) PromptCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompts
}

// Outcome returns the decided outcome, if any.
func (c *Coordinator) Outcome() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateIdle, StatePrompting:
		return 0, false
	default:
		return c.outcome, true
	}
}
