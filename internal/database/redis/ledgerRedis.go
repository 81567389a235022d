package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/ds124wfegd/task-reminder/internal/entity"

	"github.com/redis/go-redis/v9"
)

// reserveScript: KEYS[1] record hash, KEYS[2] index set.
// ARGV: now ms, cooldown ms, kind, task id, channel, ttl ms.
var reserveScript = redis.NewScript(`
local last = redis.call('HGET', KEYS[1], 'last_sent')
if last and (tonumber(ARGV[1]) - tonumber(last)) < tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'last_sent', ARGV[1], 'kind', ARGV[3], 'outcome', 'pending', 'task_id', ARGV[4], 'channel', ARGV[5], 'error', '')
redis.call('PEXPIRE', KEYS[1], ARGV[6])
redis.call('SADD', KEYS[2], KEYS[1])
return 1
`)

var completeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	redis.call('HSET', KEYS[1], 'outcome', ARGV[1], 'error', ARGV[2])
	return 1
end
return 0
`)

// LedgerRepository is the durable dedup ledger: one hash per (task, channel) with a retention TTL.
type LedgerRepository struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

func NewLedgerRepository(client *redis.Client, prefix string, retention time.Duration) *LedgerRepository {
	if prefix == "" {
		prefix = "reminder:ledger"
	}
	if retention <= 0 {
		retention = entity.LedgerRetention
	}
	return &LedgerRepository{
		client:    client,
		prefix:    prefix,
		retention: retention,
	}
}

func (r *LedgerRepository) recordKey(key entity.LedgerKey) string {
	return fmt.Sprintf("%s:%d:%s", r.prefix, key.TaskID, key.Channel)
}

func (r *LedgerRepository) indexKey() string {
	return r.prefix + ":keys"
}

func (r *LedgerRepository) ShouldSend(ctx context.Context, key entity.LedgerKey, cooldown time.Duration, now time.Time) (bool, error) {
	last, err := r.client.HGet(ctx, r.recordKey(key), "last_sent").Int64()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read ledger entry: %w", err)
	}
	return now.Sub(time.UnixMilli(last)) >= cooldown, nil
}

func (r *LedgerRepository) Record(ctx context.Context, key entity.LedgerKey, kind entity.ReminderKind, now time.Time) error {
	recordKey := r.recordKey(key)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, recordKey,
			"last_sent", now.UnixMilli(),
			"kind", string(kind),
			"outcome", string(entity.OutcomePending),
			"task_id", key.TaskID,
			"channel", key.Channel,
			"error", "",
		)
		pipe.PExpire(ctx, recordKey, r.retention)
		pipe.SAdd(ctx, r.indexKey(), recordKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepository) Reserve(ctx context.Context, key entity.LedgerKey, kind entity.ReminderKind, cooldown time.Duration, now time.Time) (bool, error) {
	res, err := reserveScript.Run(ctx, r.client,
		[]string{r.recordKey(key), r.indexKey()},
		now.UnixMilli(),
		cooldown.Milliseconds(),
		string(kind),
		key.TaskID,
		key.Channel,
		r.retention.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to reserve ledger entry: %w", err)
	}
	return res == 1, nil
}

func (r *LedgerRepository) Complete(ctx context.Context, key entity.LedgerKey, result entity.DeliveryResult) error {
	err := completeScript.Run(ctx, r.client,
		[]string{r.recordKey(key)},
		string(result.Outcome()),
		result.Error,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to complete ledger entry: %w", err)
	}
	return nil
}

// Prune removes entries older than before and index members whose hash already expired.
func (r *LedgerRepository) Prune(ctx context.Context, before time.Time) (int, error) {
	keys, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list ledger keys: %w", err)
	}

	removed := 0
	for _, recordKey := range keys {
		last, err := r.client.HGet(ctx, recordKey, "last_sent").Int64()
		if err != nil && err != redis.Nil {
			return removed, fmt.Errorf("failed to read ledger entry %s: %w", recordKey, err)
		}

		if err == redis.Nil {
			// хэш уже истек по TTL, чистим только индекс
			if err := r.client.SRem(ctx, r.indexKey(), recordKey).Err(); err != nil {
				return removed, fmt.Errorf("failed to drop ledger index entry: %w", err)
			}
			continue
		}

		if time.UnixMilli(last).Before(before) {
			if _, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, recordKey)
				pipe.SRem(ctx, r.indexKey(), recordKey)
				return nil
			}); err != nil {
				return removed, fmt.Errorf("failed to prune ledger entry: %w", err)
			}
			removed++
		}
	}
	return removed, nil
}

func (r *LedgerRepository) List(ctx context.Context) ([]entity.ReminderRecord, error) {
	keys, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger keys: %w", err)
	}

	records := make([]entity.ReminderRecord, 0, len(keys))
	for _, recordKey := range keys {
		fields, err := r.client.HGetAll(ctx, recordKey).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger entry %s: %w", recordKey, err)
		}
		if len(fields) == 0 {
			continue
		}

		rec, err := parseRecord(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ledger entry %s: %w", recordKey, err)
		}
		records = append(records, rec)
	}

	sortRecords(records)
	return records, nil
}

func parseRecord(fields map[string]string) (entity.ReminderRecord, error) {
	taskID, err := strconv.ParseInt(fields["task_id"], 10, 64)
	if err != nil {
		return entity.ReminderRecord{}, err
	}
	lastSent, err := strconv.ParseInt(fields["last_sent"], 10, 64)
	if err != nil {
		return entity.ReminderRecord{}, err
	}

	return entity.ReminderRecord{
		Key:      entity.LedgerKey{TaskID: taskID, Channel: fields["channel"]},
		LastSent: time.UnixMilli(lastSent).UTC(),
		Kind:     entity.ReminderKind(fields["kind"]),
		Outcome:  entity.DeliveryOutcome(fields["outcome"]),
		Error:    fields["error"],
	}, nil
}

func sortRecords(records []entity.ReminderRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Key.TaskID != records[j].Key.TaskID {
			return records[i].Key.TaskID < records[j].Key.TaskID
		}
		return records[i].Key.Channel < records[j].Key.Channel
	})
}
