// Package changefeed turns committed row writes into ChangeEvents on a
// board's pub/sub channel, and reads them back as a typed feed.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gosuda/lanes/internal/domain"
	"github.com/gosuda/lanes/internal/metrics"
	redisstore "github.com/gosuda/lanes/internal/store/redis"
)

// Broker is the pub/sub transport, satisfied by the redis store.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Publisher emits change events. Publishing happens after the write has
// committed, so failures are logged and never returned to the writer.
type Publisher struct {
	broker Broker
	logger zerolog.Logger
}

func NewPublisher(broker Broker, logger zerolog.Logger) *Publisher {
	return &Publisher{broker: broker, logger: logger}
}

// Change publishes one row change on the board's channel.
func (p *Publisher) Change(ctx context.Context, kind domain.ChangeKind, table domain.Table, boardID uuid.UUID, oldRow, newRow any) {
	ev, err := domain.NewChangeEvent(kind, table, boardID, oldRow, newRow)
	if err != nil {
		p.logger.Error().Err(err).Str("table", string(table)).Msg("build change event")
		return
	}
	p.Event(ctx, ev)
}

// Event publishes a prepared event.
func (p *Publisher) Event(ctx context.Context, ev domain.ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error().Err(err).Msg("marshal change event")
		return
	}
	if err := p.broker.Publish(ctx, redisstore.BoardChannel(ev.BoardID), payload); err != nil {
		p.logger.Warn().Err(err).
			Str("board_id", ev.BoardID.String()).
			Str("table", string(ev.Table)).
			Str("kind", string(ev.Kind)).
			Msg("publish change event")
		return
	}
	metrics.ChangesPublished.WithLabelValues(string(ev.Table), string(ev.Kind)).Inc()
}

// Notification pushes a freshly created notification to its recipient.
func (p *Publisher) Notification(ctx context.Context, n *domain.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		p.logger.Error().Err(err).Msg("marshal notification")
		return
	}
	if err := p.broker.Publish(ctx, redisstore.UserChannel(n.UserID), payload); err != nil {
		p.logger.Warn().Err(err).Str("user_id", n.UserID.String()).Msg("publish notification")
	}
}

// Feed subscribes to board change events over the broker.
type Feed struct {
	broker Broker
	logger zerolog.Logger
}

func NewFeed(broker Broker, logger zerolog.Logger) *Feed {
	return &Feed{broker: broker, logger: logger}
}

// Subscribe streams boardID's change events. Undecodable messages are logged
// and dropped. The channel closes when ctx ends or release is called.
func (f *Feed) Subscribe(ctx context.Context, boardID uuid.UUID) (<-chan domain.ChangeEvent, func(), error) {
	raw, release, err := f.broker.Subscribe(ctx, redisstore.BoardChannel(boardID))
	if err != nil {
		return nil, nil, fmt.Errorf("changefeed.Subscribe: %w", err)
	}

	out := make(chan domain.ChangeEvent, 64)
	go func() {
		defer close(out)
		for msg := range raw {
			var ev domain.ChangeEvent
			if err := json.Unmarshal(msg, &ev); err != nil {
				f.logger.Warn().Err(err).Str("board_id", boardID.String()).Msg("drop undecodable change event")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, release, nil
}

// SubscribeNotifications streams notifications created for userID.
func (f *Feed) SubscribeNotifications(ctx context.Context, userID uuid.UUID) (<-chan domain.Notification, func(), error) {
	raw, release, err := f.broker.Subscribe(ctx, redisstore.UserChannel(userID))
	if err != nil {
		return nil, nil, fmt.Errorf("changefeed.SubscribeNotifications: %w", err)
	}

	out := make(chan domain.Notification, 16)
	go func() {
		defer close(out)
		for msg := range raw {
			var n domain.Notification
			if err := json.Unmarshal(msg, &n); err != nil {
				f.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("drop undecodable notification")
				continue
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, release, nil
}
