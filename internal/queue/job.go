// AngelaMos | 2026
// job.go

package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrTransportUnavailable means the job could not be handed to the
	// broker at all. Callers on a request path decide whether that fails
	// the request.
	ErrTransportUnavailable = errors.New("job transport unavailable")
	ErrDuplicateJob         = errors.New("duplicate job")
	ErrUnknownKind          = errors.New("unknown job kind")
)

type Kind string

const (
	KindNotification  Kind = "task_notification"
	KindArchivalSweep Kind = "task_archival_sweep"
	KindReminderSweep Kind = "task_reminder_sweep"
	KindDataExport    Kind = "data_export"
)

const (
	QueueDefault       = "default"
	QueueNotifications = "notifications"
	QueueExports       = "exports"
	QueueLowPriority   = "low_priority"
)

// Queues lists every queue in the order workers drain them.
var Queues = []string{QueueDefault, QueueNotifications, QueueExports, QueueLowPriority}

// Definition fixes where a kind of job runs and how many times it may be
// attempted in total, first run included.
type Definition struct {
	Kind        Kind
	Queue       string
	MaxAttempts int
}

var (
	Notification  = Definition{Kind: KindNotification, Queue: QueueDefault, MaxAttempts: 3}
	ArchivalSweep = Definition{Kind: KindArchivalSweep, Queue: QueueLowPriority, MaxAttempts: 4}
	ReminderSweep = Definition{Kind: KindReminderSweep, Queue: QueueNotifications, MaxAttempts: 6}
	DataExport    = Definition{Kind: KindDataExport, Queue: QueueExports, MaxAttempts: 3}
)

type Job struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Queue       string          `json:"queue"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	LastError   string          `json:"last_error,omitempty"`
}

func (j *Job) Decode(dst any) error {
	if len(j.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(j.Payload, dst); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", j.Kind, err))
	}
	return nil
}

func (j *Job) Exhausted() bool {
	return j.Attempt >= j.MaxAttempts
}

// Permanent marks err as not worth retrying. The pool buries the job on
// the first such failure.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func IsPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}
