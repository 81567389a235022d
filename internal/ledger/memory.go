// Package ledger keeps the in-process dedup ledger of reminder sends.
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ds124wfegd/task-reminder/internal/entity"
)

// Memory stores one ReminderRecord per (task, channel) key. State is lost on restart.
type Memory struct {
	mu      sync.Mutex
	records map[entity.LedgerKey]entity.ReminderRecord
}

func NewMemory() *Memory {
	return &Memory{records: make(map[entity.LedgerKey]entity.ReminderRecord)}
}

func (m *Memory) ShouldSend(_ context.Context, key entity.LedgerKey, cooldown time.Duration, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	return !ok || elapsed(rec.LastSent, now, cooldown), nil
}

func (m *Memory) Record(_ context.Context, key entity.LedgerKey, kind entity.ReminderKind, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[key] = entity.ReminderRecord{
		Key:      key,
		LastSent: now,
		Kind:     kind,
		Outcome:  entity.OutcomePending,
	}
	return nil
}

// Reserve is ShouldSend and Record under one lock.
func (m *Memory) Reserve(_ context.Context, key entity.LedgerKey, kind entity.ReminderKind, cooldown time.Duration, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.records[key]; ok && !elapsed(rec.LastSent, now, cooldown) {
		return false, nil
	}

	m.records[key] = entity.ReminderRecord{
		Key:      key,
		LastSent: now,
		Kind:     kind,
		Outcome:  entity.OutcomePending,
	}
	return true, nil
}

func (m *Memory) Complete(_ context.Context, key entity.LedgerKey, result entity.DeliveryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return nil
	}
	rec.Outcome = result.Outcome()
	rec.Error = result.Error
	m.records[key] = rec
	return nil
}

// Prune drops records whose last send is older than before.
func (m *Memory) Prune(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, rec := range m.records {
		if rec.LastSent.Before(before) {
			delete(m.records, key)
			removed++
		}
	}
	return removed, nil
}

// List returns a snapshot ordered by task id then channel.
func (m *Memory) List(_ context.Context) ([]entity.ReminderRecord, error) {
	m.mu.Lock()
	out := make([]entity.ReminderRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	m.mu.Unlock()

	sortRecords(out)
	return out, nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func elapsed(lastSent, now time.Time, cooldown time.Duration) bool {
	return now.Sub(lastSent) >= cooldown
}

func sortRecords(records []entity.ReminderRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Key.TaskID != records[j].Key.TaskID {
			return records[i].Key.TaskID < records[j].Key.TaskID
		}
		return records[i].Key.Channel < records[j].Key.Channel
	})
}
