// Package llmtest provides a scripted llm.Oracle for tests.
package llmtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"sms_crm_agent/internal/llm"
)

// ErrUnscripted is returned for a task with no reply left.
var ErrUnscripted = errors.New("no scripted reply")

// Oracle replays canned replies per task, in order, and records every request.
type Oracle struct {
	mu       sync.Mutex
	replies  map[string][]reply
	fallback map[string]func(llm.Request) (string, error)
	calls    []llm.Request
}

type reply struct {
	text string
	err  error
}

var _ llm.Oracle = (*Oracle)(nil)

func New() *Oracle {
	return &Oracle{
		replies:  map[string][]reply{},
		fallback: map[string]func(llm.Request) (string, error){},
	}
}

// On queues text as the next reply for task.
func (o *Oracle) On(task, text string) *Oracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replies[task] = append(o.replies[task], reply{text: text})
	return o
}

// Fail queues an error as the next reply for task.
func (o *Oracle) Fail(task string, err error) *Oracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replies[task] = append(o.replies[task], reply{err: err})
	return o
}

// Always answers task with fn once its queue is empty.
func (o *Oracle) Always(task string, fn func(llm.Request) (string, error)) *Oracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallback[task] = fn
	return o
}

func (o *Oracle) Complete(_ context.Context, req llm.Request) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.calls = append(o.calls, req)
	if queue := o.replies[req.Task]; len(queue) > 0 {
		o.replies[req.Task] = queue[1:]
		if queue[0].err != nil {
			return "", fmt.Errorf("%w: %v", llm.ErrOracle, queue[0].err)
		}
		return queue[0].text, nil
	}
	if fn, ok := o.fallback[req.Task]; ok {
		return fn(req)
	}
	return "", fmt.Errorf("%w: %w for task %q", llm.ErrOracle, ErrUnscripted, req.Task)
}

// Calls returns the recorded requests, optionally filtered by task.
func (o *Oracle) Calls(task string) []llm.Request {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []llm.Request
	for _, c := range o.calls {
		if task == "" || c.Task == task {
			out = append(out, c)
		}
	}
	return out
}
