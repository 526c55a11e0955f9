package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gosuda/lanes/internal/domain"
)

const readLimit = 1 << 20

// Feed subscribes to a server's websocket change streams. It satisfies
// realtime.Feed.
type Feed struct {
	c      *Client
	logger zerolog.Logger
}

// Feed returns a websocket feed using the client's credentials.
func (c *Client) Feed(logger zerolog.Logger) *Feed {
	return &Feed{c: c, logger: logger}
}

// Subscribe opens /ws/board/{boardID}. The returned channel closes when the
// connection ends or ctx is done; release closes the connection and waits
// for the reader to exit.
func (f *Feed) Subscribe(ctx context.Context, boardID uuid.UUID) (<-chan domain.ChangeEvent, func(), error) {
	return subscribe[domain.ChangeEvent](ctx, f, "/ws/board/"+boardID.String())
}

// SubscribeNotifications opens /ws/notifications for the token's user.
func (f *Feed) SubscribeNotifications(ctx context.Context) (<-chan domain.Notification, func(), error) {
	return subscribe[domain.Notification](ctx, f, "/ws/notifications")
}

func subscribe[T any](ctx context.Context, f *Feed, path string) (<-chan T, func(), error) {
	u := *f.c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = f.c.base.Path + path

	header := http.Header{}
	if f.c.token != "" {
		header.Set("Authorization", "Bearer "+f.c.token)
	}

	// The websocket library wants cancellation through the context, so the
	// client timeout only bounds the handshake.
	hc := *f.c.http
	dialCtx := ctx
	if hc.Timeout > 0 {
		var cancelDial context.CancelFunc
		dialCtx, cancelDial = context.WithTimeout(ctx, hc.Timeout)
		defer cancelDial()
		hc.Timeout = 0
	}

	conn, _, err := websocket.Dial(dialCtx, u.String(), &websocket.DialOptions{
		HTTPClient: &hc,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("client.Feed.Subscribe: %w", err)
	}
	conn.SetReadLimit(readLimit)

	readCtx, cancel := context.WithCancel(ctx)
	out := make(chan T, 64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(out)
		for {
			typ, data, err := conn.Read(readCtx)
			if err != nil {
				if readCtx.Err() == nil {
					f.logger.Info().Err(err).Str("path", path).Msg("feed connection ended")
				}
				return
			}
			if typ != websocket.MessageText {
				continue
			}
			var v T
			if err := json.Unmarshal(data, &v); err != nil {
				f.logger.Warn().Err(err).Str("path", path).Msg("dropping undecodable frame")
				continue
			}
			select {
			case out <- v:
			case <-readCtx.Done():
				return
			}
		}
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			cancel()
			_ = conn.Close(websocket.StatusNormalClosure, "unsubscribe")
			<-done
		})
	}
	return out, release, nil
}
