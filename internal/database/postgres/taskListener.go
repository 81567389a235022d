package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/task-reminder/internal/entity"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const listenerPingInterval = 90 * time.Second

// taskNotification is the payload written by the notify_task_change trigger.
type taskNotification struct {
	Op string `json:"op"`
	ID int64  `json:"id"`
}

// TaskListener turns LISTEN/NOTIFY on the tasks table into a change feed of open tasks.
type TaskListener struct {
	connStr string
	channel string
	tasks   TaskRepository
}

func NewTaskListener(connStr, channel string, tasks TaskRepository) *TaskListener {
	return &TaskListener{
		connStr: connStr,
		channel: channel,
		tasks:   tasks,
	}
}

// Subscribe replays every open task as added, then streams changes until the returned func is called.
func (l *TaskListener) Subscribe(ctx context.Context, handle func(entity.TaskChange)) (func(), error) {
	listener := pq.NewListener(l.connStr, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logrus.WithError(err).WithField("event", ev).Warn("Task change listener connection event")
		}
	})

	if err := listener.Listen(l.channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		l.replay(ctx, handle)
		l.loop(ctx, listener, handle)
	}()

	logrus.WithField("channel", l.channel).Info("Subscribed to task changes")

	return func() {
		cancel()
		<-done
		if err := listener.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close task change listener")
		}
		logrus.WithField("channel", l.channel).Info("Unsubscribed from task changes")
	}, nil
}

func (l *TaskListener) loop(ctx context.Context, listener *pq.Listener, handle func(entity.TaskChange)) {
	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-listener.Notify:
			if n == nil {
				// соединение переустановлено, уведомления могли потеряться
				l.replay(ctx, handle)
				continue
			}

			change, ok, err := l.Resolve(ctx, []byte(n.Extra))
			if err != nil {
				logrus.WithError(err).WithField("payload", n.Extra).Error("Failed to resolve task change")
				continue
			}
			if ok {
				handle(change)
			}
		case <-ticker.C:
			if err := listener.Ping(); err != nil {
				logrus.WithError(err).Warn("Task change listener ping failed")
			}
		}
	}
}

func (l *TaskListener) replay(ctx context.Context, handle func(entity.TaskChange)) {
	tasks, err := l.tasks.GetOpenTasks(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to load open tasks for change feed")
		return
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			return
		}
		handle(entity.TaskChange{Type: entity.ChangeAdded, Task: *task})
	}
	logrus.Infof("Replayed %d open tasks into change feed", len(tasks))
}

// Resolve maps a trigger payload to a change on the filtered set of open tasks.
// A task that left the set (deleted or completed) is reported as removed.
func (l *TaskListener) Resolve(ctx context.Context, payload []byte) (entity.TaskChange, bool, error) {
	var n taskNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return entity.TaskChange{}, false, fmt.Errorf("failed to decode notification: %w", err)
	}

	if n.Op == "DELETE" {
		return entity.TaskChange{Type: entity.ChangeRemoved, Task: entity.Task{ID: n.ID}}, true, nil
	}

	task, err := l.tasks.GetByID(ctx, n.ID)
	if errors.Is(err, entity.ErrTaskNotFound) {
		return entity.TaskChange{Type: entity.ChangeRemoved, Task: entity.Task{ID: n.ID}}, true, nil
	}
	if err != nil {
		return entity.TaskChange{}, false, err
	}

	if task.Status.IsTerminal() {
		return entity.TaskChange{Type: entity.ChangeRemoved, Task: *task}, true, nil
	}

	switch n.Op {
	case "INSERT":
		return entity.TaskChange{Type: entity.ChangeAdded, Task: *task}, true, nil
	case "UPDATE":
		return entity.TaskChange{Type: entity.ChangeModified, Task: *task}, true, nil
	default:
		return entity.TaskChange{}, false, fmt.Errorf("unknown operation %q", n.Op)
	}
}
