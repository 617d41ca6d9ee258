// Package notify fans committed log entries and settled actions out to
// subscribers over NATS JetStream.
package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/store"
	"github.com/goliatone/go-mailsync/txlog"
	"github.com/google/uuid"
)

// Kind classifies a notification; it becomes the last subject token.
type Kind string

const (
	KindDelta  Kind = "delta"
	KindAction Kind = "action"
)

// Notification is a single message for subscribers of a namespace.
type Notification struct {
	Kind        Kind
	NamespaceID uuid.UUID
	MsgID       string
	Body        any
}

// Publisher delivers notifications.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// NopPublisher drops every notification.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Notification) error { return nil }

// Recorder keeps notifications in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Publish(_ context.Context, n Notification) error {
	r.mu.Lock()
	r.sent = append(r.sent, n)
	r.mu.Unlock()
	return nil
}

// Sent returns a copy of the recorded notifications.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

// CommitListener publishes one KindDelta notification per namespace touched
// by a committed unit of work. Publish failures are logged; the commit has
// already happened and clients still find the entries by polling.
func CommitListener(publisher Publisher, clock types.Clock, logger types.Logger) store.CommitListener {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if clock == nil {
		clock = types.SystemClock{}
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return func(ctx context.Context, entries []*txlog.Entry) {
		for _, summary := range Summarize(entries, clock) {
			n := Notification{
				Kind:        KindDelta,
				NamespaceID: summary.NamespaceID,
				MsgID:       fmt.Sprintf("delta-%s-%d", summary.NamespaceID, summary.PointerEnd),
				Body:        summary,
			}
			if err := publisher.Publish(ctx, n); err != nil {
				logger.Error("commit notification failed", err, "namespace_id", summary.NamespaceID, "cursor", summary.PointerEnd)
			}
		}
	}
}

// Summarize groups entries by namespace.
func Summarize(entries []*txlog.Entry, clock types.Clock) []types.CommitNotification {
	if len(entries) == 0 {
		return nil
	}
	byNamespace := make(map[uuid.UUID]*types.CommitNotification)
	seen := make(map[uuid.UUID]map[types.ObjectType]struct{})
	order := make([]uuid.UUID, 0)
	now := clock.Now()
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		summary, ok := byNamespace[entry.NamespaceID]
		if !ok {
			summary = &types.CommitNotification{NamespaceID: entry.NamespaceID, CommittedAt: now}
			byNamespace[entry.NamespaceID] = summary
			seen[entry.NamespaceID] = make(map[types.ObjectType]struct{})
			order = append(order, entry.NamespaceID)
		}
		summary.Count++
		if entry.ID > summary.PointerEnd {
			summary.PointerEnd = entry.ID
		}
		if _, dup := seen[entry.NamespaceID][entry.ObjectType]; !dup {
			seen[entry.NamespaceID][entry.ObjectType] = struct{}{}
			summary.Objects = append(summary.Objects, entry.ObjectType)
		}
	}
	out := make([]types.CommitNotification, 0, len(order))
	for _, ns := range order {
		summary := byNamespace[ns]
		sort.Slice(summary.Objects, func(i, j int) bool { return summary.Objects[i] < summary.Objects[j] })
		out = append(out, *summary)
	}
	return out
}

// OutcomeNotification wraps a settled action for publishing.
func OutcomeNotification(outcome types.ActionOutcome) Notification {
	return Notification{
		Kind:        KindAction,
		NamespaceID: outcome.NamespaceID,
		MsgID:       fmt.Sprintf("action-%s-%s-%d", outcome.ActionID, outcome.Status, outcome.Retries),
		Body:        outcome,
	}
}
