package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/task-reminder/internal/entity"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const readRetryDelay = 5 * time.Second

// messageReader is the part of *kafka.Reader the consumer loop uses
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type TaskFeedConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// TaskFeed reads JSON encoded entity.TaskChange messages from a topic.
type TaskFeed struct {
	config TaskFeedConfig
}

func NewTaskFeed(config TaskFeedConfig) *TaskFeed {
	return &TaskFeed{config: config}
}

func (f *TaskFeed) Subscribe(ctx context.Context, handle func(entity.TaskChange)) (func(), error) {
	if len(f.config.Brokers) == 0 || f.config.Topic == "" {
		return nil, fmt.Errorf("kafka task feed: brokers and topic are required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  f.config.Brokers,
		Topic:    f.config.Topic,
		GroupID:  f.config.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		consume(ctx, reader, handle, readRetryDelay)
	}()

	logrus.WithField("topic", f.config.Topic).Info("Subscribed to Kafka task changes")

	return func() {
		cancel()
		<-done
		if err := reader.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close Kafka reader")
		}
	}, nil
}

// consume reads until ctx is done. Read errors are logged and retried after retryDelay.
func consume(ctx context.Context, reader messageReader, handle func(entity.TaskChange), retryDelay time.Duration) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			logrus.WithError(err).Error("Failed to read task change from Kafka, retrying")

			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		change, err := DecodeChange(msg.Value)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).Warn("Skipping malformed task change")
			continue
		}
		handle(change)
	}
}

func DecodeChange(value []byte) (entity.TaskChange, error) {
	var change entity.TaskChange
	if err := json.Unmarshal(value, &change); err != nil {
		return change, fmt.Errorf("failed to unmarshal task change: %w", err)
	}

	switch change.Type {
	case entity.ChangeAdded, entity.ChangeModified, entity.ChangeRemoved:
	default:
		return change, fmt.Errorf("unknown change type %q", change.Type)
	}

	if change.Task.ID == 0 {
		return change, fmt.Errorf("task change without task id")
	}

	// completed tasks leave the filtered feed
	if change.Task.Status.IsTerminal() {
		change.Type = entity.ChangeRemoved
	}
	return change, nil
}
