package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"
	"github.com/ZanzyTHEbar/volsearch/volsearch/ports"
)

var _ ports.Interactor = (*console)(nil)

// console writes status lines to the terminal. Results go to stdout; every
// other line goes to the status writer.
type console struct {
	status io.Writer

	mu      sync.Mutex
	started time.Time
	task    string
}

func newConsole(status io.Writer) *console {
	return &console{status: status}
}

func (c *console) Output(message string) {
	fmt.Fprintln(c.status, message)
}

func (c *console) Warning(message string) {
	fmt.Fprintf(c.status, "warning: %s\n", message)
}

func (c *console) Error(message string, err error) {
	if err == nil {
		fmt.Fprintf(c.status, "error: %s\n", message)
		return
	}
	fmt.Fprintf(c.status, "error: %s: %v\n", message, err)
}

func (c *console) StartProgress(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = time.Now()
	c.task = message
	fmt.Fprintf(c.status, "%s...\n", message)
}

func (c *console) StopProgress(success bool, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := "done"
	if !success {
		state = "failed"
	}
	fmt.Fprintf(c.status, "%s %s in %s: %s\n", c.task, state, common.FormatDuration(time.Since(c.started)), message)
}
