package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// FeedStatus describes the health of the change subscription. The feed
// is an accelerator: any status other than live only raises latency,
// because the pollers converge on their own.
type FeedStatus string

const (
	FeedStatusInit     FeedStatus = "init"
	FeedStatusLive     FeedStatus = "live"
	FeedStatusClosed   FeedStatus = "closed"
	FeedStatusErrored  FeedStatus = "errored"
	FeedStatusTimedOut FeedStatus = "timedOut"
)

// Scope identifies which entity class a change event implicates.
type Scope string

const (
	ScopeGame    Scope = "game"
	ScopeCards   Scope = "cards"
	ScopeMembers Scope = "members"
)

// MarkEvent is a reveal-mark broadcast between co-participants. Marks
// are local intent, never persisted by the service.
type MarkEvent struct {
	Position int       `json:"position"`
	By       uuid.UUID `json:"by"`
	Cleared  bool      `json:"cleared"`
	At       time.Time `json:"at"`
}

// FeedConfig holds connection settings for the change feed.
type FeedConfig struct {
	URL           string
	ConnectWait   time.Duration
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultFeedConfig returns the default feed configuration.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		URL:           nats.DefaultURL,
		ConnectWait:   5 * time.Second,
		MaxReconnects: -1, // keep trying; the poller covers the gaps
		ReconnectWait: 2 * time.Second,
	}
}

// Feed subscribes to the service's change notifications for one game
// and lobby. Events are untyped "something changed, re-fetch" pokes
// with no ordering guarantee relative to polling.
type Feed struct {
	nc      *nats.Conn
	subs    []*nats.Subscription
	gameID  uuid.UUID
	lobbyID uuid.UUID

	onEvent  func(Scope)
	onMark   func(MarkEvent)
	onStatus func(FeedStatus)
}

// NewFeed connects to the bus and wires status transitions. A connect
// timeout maps to FeedStatusTimedOut via the returned error; callers
// fall back to poll-only operation.
func NewFeed(cfg FeedConfig, gameID, lobbyID uuid.UUID, onEvent func(Scope), onMark func(MarkEvent), onStatus func(FeedStatus)) (*Feed, error) {
	f := &Feed{
		gameID:   gameID,
		lobbyID:  lobbyID,
		onEvent:  onEvent,
		onMark:   onMark,
		onStatus: onStatus,
	}

	opts := []nats.Option{
		nats.Timeout(cfg.ConnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("change feed disconnected")
			f.onStatus(FeedStatusErrored)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("change feed reconnected")
			f.onStatus(FeedStatusLive)
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			f.onStatus(FeedStatusClosed)
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("change feed error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to change feed: %w", err)
	}
	f.nc = nc
	return f, nil
}

func (f *Feed) gameSubject() string    { return fmt.Sprintf("game.%s.changed", f.gameID) }
func (f *Feed) cardsSubject() string   { return fmt.Sprintf("game.%s.cards.changed", f.gameID) }
func (f *Feed) membersSubject() string { return fmt.Sprintf("lobby.%s.members.changed", f.lobbyID) }
func (f *Feed) marksSubject() string   { return fmt.Sprintf("lobby.%s.marks", f.lobbyID) }

// Start subscribes to the per-entity change subjects and the mark
// channel for this session's identifiers.
func (f *Feed) Start() error {
	type binding struct {
		subject string
		scope   Scope
	}
	bindings := []binding{
		{f.gameSubject(), ScopeGame},
		{f.cardsSubject(), ScopeCards},
		{f.membersSubject(), ScopeMembers},
	}

	for _, b := range bindings {
		scope := b.scope
		sub, err := f.nc.Subscribe(b.subject, func(msg *nats.Msg) {
			log.Debug().Str("subject", msg.Subject).Str("scope", string(scope)).Msg("change event")
			f.onEvent(scope)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", b.subject, err)
		}
		f.subs = append(f.subs, sub)
	}

	markSub, err := f.nc.Subscribe(f.marksSubject(), func(msg *nats.Msg) {
		var ev MarkEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Error().Err(err).Msg("failed to unmarshal mark event")
			return
		}
		f.onMark(ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", f.marksSubject(), err)
	}
	f.subs = append(f.subs, markSub)

	f.onStatus(FeedStatusLive)
	log.Info().
		Str("game_id", f.gameID.String()).
		Str("lobby_id", f.lobbyID.String()).
		Msg("change feed live")
	return nil
}

// PublishMark broadcasts a reveal-mark transition to co-participants.
func (f *Feed) PublishMark(ev MarkEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal mark event: %w", err)
	}
	if err := f.nc.Publish(f.marksSubject(), data); err != nil {
		return fmt.Errorf("publish mark event: %w", err)
	}
	return nil
}

// Close unsubscribes everything and drops the connection. Must run the
// moment the session identifier changes or the session exits, so a
// stale session cannot keep triggering fetches.
func (f *Feed) Close() {
	for _, sub := range f.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Str("subject", sub.Subject).Msg("failed to unsubscribe")
		}
	}
	f.subs = nil
	if f.nc != nil {
		f.nc.Close()
	}
	f.onStatus(FeedStatusClosed)
}
