package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/unioncms/unioncms/internal/domain"
)

// channelPrefix namespaces change-event channels per collection.
const channelPrefix = "unioncms:"

// SignalService fans committed change events out over redis pub/sub, one
// channel per collection.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, event domain.ChangeEvent) error {
	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channelPrefix+string(event.Collection), jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Realtime bridges redis pub/sub to a websocket session. The input channel
// replaces the set of listened collections; decoded events flow to output
// until ctx is done or input closes.
func (s *SignalService) Realtime(ctx context.Context, input chan []string, output chan domain.ChangeEvent) {
	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()

	ch := pubsub.Channel()
	var current []string

	for {
		select {
		case <-ctx.Done():
			return
		case collections, ok := <-input:
			if !ok {
				return
			}
			if len(current) > 0 {
				if err := pubsub.Unsubscribe(ctx, current...); err != nil {
					slog.ErrorContext(ctx, "failed to unsubscribe",
						slog.String("error", err.Error()),
						slog.String("module", "signal"),
					)
				}
			}
			current = current[:0]
			for _, collection := range collections {
				current = append(current, channelPrefix+collection)
			}
			if len(current) > 0 {
				if err := pubsub.Subscribe(ctx, current...); err != nil {
					slog.ErrorContext(ctx, "failed to subscribe",
						slog.String("error", err.Error()),
						slog.String("module", "signal"),
					)
				}
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event domain.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.ErrorContext(ctx, "failed to decode change event",
					slog.String("error", err.Error()),
					slog.String("channel", msg.Channel),
					slog.String("module", "signal"),
				)
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Subscribe delivers change events for the given collections until the
// returned cancel function is called. Malformed messages are logged and
// skipped.
func (s *SignalService) Subscribe(ctx context.Context, kinds []domain.Kind, fn func(domain.ChangeEvent)) (context.CancelFunc, error) {
	channels := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		channels = append(channels, channelPrefix+string(kind))
	}

	pubsub := s.rdb.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event domain.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					slog.ErrorContext(ctx, "failed to decode change event",
						slog.String("error", err.Error()),
						slog.String("channel", msg.Channel),
						slog.String("module", "signal"),
					)
					continue
				}
				fn(event)
			}
		}
	}()

	return cancel, nil
}
