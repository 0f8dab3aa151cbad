// Package gate implements the two blocking checkpoints of a task execution:
// the human-input gate (a question that waits for an answer) and the approval
// gate (a tool-use request that waits for a decision). Both gates synchronize
// through the store only, so answers arrive from any process holding the same
// database.
package gate

import (
	"errors"
	"time"
)

// Publisher pushes gate events to live subscribers. *httpapi.SSEHub
// implements it.
type Publisher interface {
	PublishTask(taskID, event string, data map[string]any)
	PublishBroadcast(event string, data map[string]any)
}

// ErrTaskCancelled is returned when the task is cancelled while a gate is
// waiting. Callers treat it as a cooperative stop signal, not a failure.
var ErrTaskCancelled = errors.New("task cancelled")

const defaultPollInterval = time.Second

type nopPublisher struct{}

func (nopPublisher) PublishTask(string, string, map[string]any) {}
func (nopPublisher) PublishBroadcast(string, map[string]any)    {}
