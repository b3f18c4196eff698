package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ZanzyTHEbar/volsearch/volsearch/escalation"
)

const promptAttempts = 3

// terminalPrompter asks on the terminal whether to restart elevated.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p terminalPrompter) Prompt(ctx context.Context, req escalation.PromptRequest) (escalation.Choice, error) {
	fmt.Fprintf(p.out, "\n%s\n", req.Reason)
	for range promptAttempts {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		fmt.Fprint(p.out, "[e]levate / [f]allback to directory scan / [s]kip? ")
		line, err := p.in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return 0, fmt.Errorf("read answer: %w", err)
		}
		if choice, ok := parseChoice(line); ok {
			return choice, nil
		}
		fmt.Fprintf(p.out, "unrecognised answer %q\n", strings.TrimSpace(line))
	}
	return escalation.ChoiceFallback, nil
}

// parseChoice accepts the first letter or the full word; an empty answer
// means fallback.
func parseChoice(s string) (escalation.Choice, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "e", "elevate":
		return escalation.ChoiceElevate, true
	case "", "f", "fallback":
		return escalation.ChoiceFallback, true
	case "s", "skip":
		return escalation.ChoiceSkip, true
	default:
		return 0, false
	}
}
