// Package realtime applies a board's change feed to the local board cache so
// remote edits converge without polling.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gosuda/lanes/internal/board"
	"github.com/gosuda/lanes/internal/domain"
	"github.com/gosuda/lanes/internal/metrics"
	"github.com/gosuda/lanes/internal/notice"
)

// Feed delivers committed row changes for one board. The returned function
// releases the subscription; the channel is closed when the feed ends.
type Feed interface {
	Subscribe(ctx context.Context, boardID uuid.UUID) (<-chan domain.ChangeEvent, func(), error)
}

// Fetcher performs the full reload that follows every (re)subscription.
type Fetcher interface {
	Load(ctx context.Context, boardID uuid.UUID) error
}

type subscription struct {
	boardID uuid.UUID
	cancel  context.CancelFunc
	release func()
	done    chan struct{}
}

// Reconciler owns at most one feed subscription at a time.
type Reconciler struct {
	feed    Feed
	fetcher Fetcher
	state   *board.State
	session *board.Session
	notices notice.Sink
	logger  zerolog.Logger

	// switching serializes Subscribe calls so that the reload of the last
	// subscribed board is also the last one to land in the cache.
	switching sync.Mutex

	mu  sync.Mutex
	sub *subscription
}

func New(feed Feed, fetcher Fetcher, state *board.State, session *board.Session, notices notice.Sink, logger zerolog.Logger) *Reconciler {
	if notices == nil {
		notices = notice.Discard
	}
	return &Reconciler{
		feed:    feed,
		fetcher: fetcher,
		state:   state,
		session: session,
		notices: notices,
		logger:  logger,
	}
}

// Subscribe replaces any current subscription with one for boardID and then
// reloads the board. The subscription lasts until Unsubscribe, Close, the next
// Subscribe, the feed closing, or ctx ending. A failed reload is returned but
// leaves the subscription in place.
func (r *Reconciler) Subscribe(ctx context.Context, boardID uuid.UUID) error {
	r.switching.Lock()
	defer r.switching.Unlock()

	r.mu.Lock()
	r.stopLocked()

	subCtx, cancel := context.WithCancel(ctx)
	events, release, err := r.feed.Subscribe(subCtx, boardID)
	if err != nil {
		cancel()
		r.mu.Unlock()
		return fmt.Errorf("realtime.Subscribe: %w", err)
	}

	sub := &subscription{
		boardID: boardID,
		cancel:  cancel,
		release: release,
		done:    make(chan struct{}),
	}
	r.sub = sub
	go r.run(subCtx, sub, events)
	r.mu.Unlock()

	r.logger.Info().Str("board_id", boardID.String()).Msg("subscribed to board changes")

	if err := r.fetcher.Load(ctx, boardID); err != nil {
		return fmt.Errorf("realtime.Subscribe: load: %w", err)
	}
	return nil
}

// Unsubscribe stops the consumer and releases the feed. It returns once no
// further event can be applied.
func (r *Reconciler) Unsubscribe() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Reconciler) Close() error {
	r.Unsubscribe()
	return nil
}

// Subscribed returns the board currently subscribed to.
func (r *Reconciler) Subscribed() (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub == nil {
		return uuid.Nil, false
	}
	select {
	case <-r.sub.done:
		return uuid.Nil, false
	default:
		return r.sub.boardID, true
	}
}

func (r *Reconciler) stopLocked() {
	sub := r.sub
	if sub == nil {
		return
	}
	r.sub = nil
	sub.cancel()
	sub.release()
	<-sub.done
	r.logger.Debug().Str("board_id", sub.boardID.String()).Msg("unsubscribed from board changes")
}

func (r *Reconciler) run(ctx context.Context, sub *subscription, events <-chan domain.ChangeEvent) {
	defer close(sub.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				r.logger.Warn().Str("board_id", sub.boardID.String()).Msg("change feed closed")
				return
			}
			// Unsubscribe may have raced the receive.
			if ctx.Err() != nil {
				return
			}
			r.Apply(sub.boardID, ev)
		}
	}
}

// Apply folds one event into the cache. Events are applied in delivery order
// and overwrite whatever the cache holds for the row.
func (r *Reconciler) Apply(boardID uuid.UUID, ev domain.ChangeEvent) {
	log := r.logger.With().
		Str("board_id", boardID.String()).
		Str("table", string(ev.Table)).
		Str("kind", string(ev.Kind)).
		Logger()

	if ev.BoardID != boardID {
		metrics.RealtimeDropped.WithLabelValues("foreign_board").Inc()
		log.Debug().Str("event_board_id", ev.BoardID.String()).Msg("ignoring event for another board")
		return
	}

	var err error
	switch ev.Table {
	case domain.TableColumns:
		err = r.applyColumn(boardID, ev)
	case domain.TableTasks:
		err = r.applyTask(ev)
	case domain.TableMembers:
		err = r.applyMember(ev)
	default:
		metrics.RealtimeDropped.WithLabelValues("unknown_table").Inc()
		log.Warn().Msg("ignoring event for unknown table")
		return
	}
	if err != nil {
		metrics.RealtimeDropped.WithLabelValues("malformed").Inc()
		log.Warn().Err(err).Msg("skipping malformed change event")
		return
	}
	metrics.RealtimeEvents.WithLabelValues(string(ev.Table), string(ev.Kind)).Inc()
}

func (r *Reconciler) applyColumn(boardID uuid.UUID, ev domain.ChangeEvent) error {
	var c domain.Column
	if err := decodeRow(ev, &c); err != nil {
		return err
	}
	if c.ID == uuid.Nil {
		return errMissingID
	}

	switch ev.Kind {
	case domain.ChangeInsert, domain.ChangeUpdate:
		if c.BoardID != uuid.Nil && c.BoardID != boardID {
			return nil
		}
		r.state.UpsertColumn(c)
	case domain.ChangeDelete:
		if n := r.state.RemoveColumn(c.ID); n > 0 {
			r.logger.Debug().Str("column_id", c.ID.String()).Int("tasks", n).Msg("cascaded column delete")
		}
	default:
		return fmt.Errorf("unknown change kind %q", ev.Kind)
	}
	return nil
}

func (r *Reconciler) applyTask(ev domain.ChangeEvent) error {
	var t domain.Task
	if err := decodeRow(ev, &t); err != nil {
		return err
	}
	if t.ID == uuid.Nil {
		return errMissingID
	}

	switch ev.Kind {
	case domain.ChangeInsert, domain.ChangeUpdate:
		r.state.UpsertTask(t)
	case domain.ChangeDelete:
		r.state.RemoveTask(t.ID)
	default:
		return fmt.Errorf("unknown change kind %q", ev.Kind)
	}
	return nil
}

func (r *Reconciler) applyMember(ev domain.ChangeEvent) error {
	var m domain.Membership
	if err := decodeRow(ev, &m); err != nil {
		return err
	}
	if m.ID == uuid.Nil {
		return errMissingID
	}

	var role domain.Role
	switch ev.Kind {
	case domain.ChangeInsert, domain.ChangeUpdate:
		r.state.UpsertMember(m)
		role = m.EffectiveRole()
	case domain.ChangeDelete:
		if old, ok := r.state.RemoveMember(m.ID); ok && m.UserID == uuid.Nil {
			m.UserID = old.UserID
		}
		role = domain.RoleNone
	default:
		return fmt.Errorf("unknown change kind %q", ev.Kind)
	}

	r.applySelfRole(m.UserID, role, ev.Kind)
	return nil
}

// applySelfRole updates the session when the event concerns the viewer's own
// membership. The board owner's role comes from ownership, never membership.
func (r *Reconciler) applySelfRole(userID uuid.UUID, role domain.Role, kind domain.ChangeKind) {
	me := r.session.User().ID
	if me == uuid.Nil || userID != me {
		return
	}
	if b, ok := r.state.Board(); ok && b.OwnerID == me {
		return
	}

	prev, changed := r.session.SetRole(role)
	if !changed {
		return
	}
	r.logger.Info().Str("from", string(prev)).Str("to", string(role)).Msg("own board role changed")

	switch {
	case kind == domain.ChangeDelete:
		r.notices.Notify(notice.New(notice.LevelWarning, "You have been removed from this board."))
	case role == domain.RoleNone:
		r.notices.Notify(notice.New(notice.LevelWarning, "Your access to this board is no longer active."))
	default:
		r.notices.Notify(notice.New(notice.LevelInfo, fmt.Sprintf("Your role on this board is now %s.", role)))
	}
}

var errMissingID = errors.New("row has no id")

func decodeRow(ev domain.ChangeEvent, dst any) error {
	raw := ev.Row()
	if ev.Kind == domain.ChangeDelete && len(ev.Old) > 0 {
		raw = ev.Old
	}
	if len(raw) == 0 {
		return errors.New("event carries no row")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}
