package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/opencode-ai/subagents/internal/event"
)

// RolloutItem is one persisted lifecycle record.
type RolloutItem struct {
	Type    event.EventType `json:"type"`
	Seq     uint64          `json:"seq"`
	Time    time.Time       `json:"time"`
	SubID   string          `json:"subID"`
	Name    string          `json:"name"`
	Task    string          `json:"task,omitempty"`
	Success *bool           `json:"success,omitempty"`
}

// Rollout is the append-only lifecycle log of one session.
type Rollout struct {
	store     *Storage
	sessionID string
}

// NewRollout returns the rollout log for sessionID.
func NewRollout(store *Storage, sessionID string) *Rollout {
	return &Rollout{store: store, sessionID: sessionID}
}

// SessionID returns the session the log belongs to.
func (r *Rollout) SessionID() string { return r.sessionID }

func (r *Rollout) logPath() []string { return []string{"rollout", r.sessionID} }

// Record appends a lifecycle event. Other event types are ignored.
func (r *Rollout) Record(ctx context.Context, ev event.Event) error {
	item := RolloutItem{Type: ev.Type, Seq: ev.Seq, Time: ev.Time}

	switch data := ev.Data.(type) {
	case event.SubAgentStartData:
		item.SubID, item.Name, item.Task = data.SubID, data.Name, data.Task
	case event.SubAgentEndData:
		success := data.Success
		item.SubID, item.Name, item.Success = data.SubID, data.Name, &success
	default:
		return nil
	}

	return r.store.Append(ctx, r.logPath(), item)
}

// Items returns every recorded item in append order.
func (r *Rollout) Items(ctx context.Context) ([]RolloutItem, error) {
	items := []RolloutItem{}
	err := r.store.ReadLines(ctx, r.logPath(), func(line json.RawMessage) error {
		var item RolloutItem
		if err := json.Unmarshal(line, &item); err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	return items, err
}

// SaveResult stores the final result of a delegated run.
func (r *Rollout) SaveResult(ctx context.Context, subID string, result any) error {
	return r.store.Put(ctx, []string{"result", r.sessionID, subID}, result)
}

// Result loads a result saved with SaveResult.
func (r *Rollout) Result(ctx context.Context, subID string, v any) error {
	return r.store.Get(ctx, []string{"result", r.sessionID, subID}, v)
}
