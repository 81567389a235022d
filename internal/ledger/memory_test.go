package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ds124wfegd/task-reminder/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func TestMemoryReserveCooldown(t *testing.T) {
	tests := []struct {
		name     string
		cooldown time.Duration
		after    time.Duration
		want     bool
	}{
		{name: "due tomorrow inside window", cooldown: entity.CooldownDueTomorrow, after: 23 * time.Hour, want: false},
		{name: "due tomorrow window elapsed", cooldown: entity.CooldownDueTomorrow, after: 24 * time.Hour, want: true},
		{name: "due today inside window", cooldown: entity.CooldownDueToday, after: 11*time.Hour + 59*time.Minute, want: false},
		{name: "due today window elapsed", cooldown: entity.CooldownDueToday, after: 12 * time.Hour, want: true},
		{name: "overdue inside window", cooldown: entity.CooldownOverdue, after: 2 * time.Hour, want: false},
		{name: "overdue window elapsed", cooldown: entity.CooldownOverdue, after: 6*time.Hour + time.Second, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m := NewMemory()
			key := entity.LedgerKey{TaskID: 1, Channel: "+919876543210"}

			ok, err := m.Reserve(ctx, key, entity.ReminderDue, tt.cooldown, base)
			require.NoError(t, err)
			require.True(t, ok, "first reservation for a key is always allowed")

			ok, err = m.Reserve(ctx, key, entity.ReminderDue, tt.cooldown, base.Add(tt.after))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestMemoryShouldSendAndRecord(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := entity.LedgerKey{TaskID: 7, Channel: "+919876543210"}

	ok, err := m.ShouldSend(ctx, key, entity.CooldownOverdue, base)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Record(ctx, key, entity.ReminderOverdue, base))

	ok, _ = m.ShouldSend(ctx, key, entity.CooldownOverdue, base.Add(time.Hour))
	assert.False(t, ok)
	ok, _ = m.ShouldSend(ctx, key, entity.CooldownOverdue, base.Add(6*time.Hour))
	assert.True(t, ok)
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ok, _ := m.Reserve(ctx, entity.LedgerKey{TaskID: 1, Channel: "+911111111111"}, entity.ReminderDue, entity.CooldownDueTomorrow, base)
	assert.True(t, ok)
	ok, _ = m.Reserve(ctx, entity.LedgerKey{TaskID: 1, Channel: "+912222222222"}, entity.ReminderDue, entity.CooldownDueTomorrow, base)
	assert.True(t, ok)
	ok, _ = m.Reserve(ctx, entity.LedgerKey{TaskID: 2, Channel: "+911111111111"}, entity.ReminderDue, entity.CooldownDueTomorrow, base)
	assert.True(t, ok)
	assert.Equal(t, 3, m.Len())
}

func TestMemoryComplete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := entity.LedgerKey{TaskID: 3, Channel: "+919876543210"}

	_, _ = m.Reserve(ctx, key, entity.ReminderOverdue, entity.CooldownOverdue, base)
	require.NoError(t, m.Complete(ctx, key, entity.DeliveryResult{Success: false, Error: "gateway returned status 500"}))

	records, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entity.OutcomeFailed, records[0].Outcome)
	assert.Equal(t, entity.ReminderOverdue, records[0].Kind)
	assert.Equal(t, base, records[0].LastSent)

	// a failed attempt still holds the cooldown
	ok, _ := m.Reserve(ctx, key, entity.ReminderOverdue, entity.CooldownOverdue, base.Add(time.Hour))
	assert.False(t, ok)

	// unknown key is a no-op
	assert.NoError(t, m.Complete(ctx, entity.LedgerKey{TaskID: 99}, entity.DeliveryResult{Success: true}))
	assert.Equal(t, 1, m.Len())
}

func TestMemoryPrune(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Record(ctx, entity.LedgerKey{TaskID: 1, Channel: "a"}, entity.ReminderDue, base.Add(-31*24*time.Hour)))
	require.NoError(t, m.Record(ctx, entity.LedgerKey{TaskID: 2, Channel: "b"}, entity.ReminderDue, base.Add(-29*24*time.Hour)))
	require.NoError(t, m.Record(ctx, entity.LedgerKey{TaskID: 3, Channel: "c"}, entity.ReminderOverdue, base))

	removed, err := m.Prune(ctx, base.Add(-entity.LedgerRetention))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	records, _ := m.List(ctx)
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0].Key.TaskID)
	assert.Equal(t, int64(3), records[1].Key.TaskID)
}

func TestMemoryReserveIsAtomic(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := entity.LedgerKey{TaskID: 42, Channel: "+919876543210"}

	var allowed int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.Reserve(ctx, key, entity.ReminderOverdue, entity.CooldownOverdue, base); ok {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), allowed)
}
