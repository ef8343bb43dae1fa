package connect

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podplay/internal/api/message"
	"github.com/osa030/podplay/internal/app/notification"
	"github.com/osa030/podplay/internal/app/player"
	"github.com/osa030/podplay/internal/app/provider"
	"github.com/osa030/podplay/internal/app/session"
	"github.com/osa030/podplay/internal/domain/episode"
)

// EpisodeResolver resolves episode IDs into episodes.
type EpisodeResolver interface {
	Episode(ctx context.Context, id string) (*episode.Episode, error)
	Episodes(ctx context.Context, ids []string) (episode.List, error)
}

// PlayerService implements the PlayerService RPC.
type PlayerService struct {
	sessions *session.Manager
	episodes EpisodeResolver
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(sessions *session.Manager, episodes EpisodeResolver) *PlayerService {
	return &PlayerService{
		sessions: sessions,
		episodes: episodes,
	}
}

// OpenSession resumes or opens a player session.
func (s *PlayerService) OpenSession(
	ctx context.Context,
	req *connect.Request[OpenSessionRequest],
) (*connect.Response[OpenSessionResponse], error) {
	sess, created := s.sessions.Open(strings.TrimSpace(req.Msg.SessionID))
	return connect.NewResponse(&OpenSessionResponse{
		SessionID: sess.ID,
		Created:   created,
		State:     message.FromSnapshot(sess.Player.Snapshot()),
	}), nil
}

// GetState returns the player state.
func (s *PlayerService) GetState(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StateResponse], error) {
	return s.do(req.Header(), func(*player.Player) error { return nil })
}

// Play replaces the queue with a single episode.
func (s *PlayerService) Play(
	ctx context.Context,
	req *connect.Request[PlayRequest],
) (*connect.Response[StateResponse], error) {
	id := strings.TrimSpace(req.Msg.EpisodeID)
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("episode_id is required"))
	}

	e, err := s.episodes.Episode(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}

	return s.do(req.Header(), func(p *player.Player) error {
		p.Play(*e)
		return nil
	})
}

// PlayList replaces the queue with a list and starts at index.
func (s *PlayerService) PlayList(
	ctx context.Context,
	req *connect.Request[PlayListRequest],
) (*connect.Response[StateResponse], error) {
	list, err := s.episodes.Episodes(ctx, req.Msg.EpisodeIDs)
	if err != nil {
		return nil, toConnectError(err)
	}

	return s.do(req.Header(), func(p *player.Player) error {
		return p.PlayList(list, req.Msg.Index)
	})
}

// PlayNext moves to the next episode.
func (s *PlayerService) PlayNext(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StateResponse], error) {
	return s.do(req.Header(), transition((*player.Player).PlayNext))
}

// PlayPrevious moves to the previous episode.
func (s *PlayerService) PlayPrevious(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StateResponse], error) {
	return s.do(req.Header(), transition((*player.Player).PlayPrevious))
}

// TogglePlay flips the playing flag.
func (s *PlayerService) TogglePlay(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StateResponse], error) {
	return s.do(req.Header(), transition((*player.Player).TogglePlay))
}

// ToggleLoop flips the looping flag.
func (s *PlayerService) ToggleLoop(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StateResponse], error) {
	return s.do(req.Header(), transition((*player.Player).ToggleLoop))
}

// ToggleShuffle flips the shuffling flag.
func (s *PlayerService) ToggleShuffle(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StateResponse], error) {
	return s.do(req.Header(), transition((*player.Player).ToggleShuffle))
}

// SetPlayingState mirrors the media element play/pause state.
func (s *PlayerService) SetPlayingState(
	ctx context.Context,
	req *connect.Request[SetPlayingStateRequest],
) (*connect.Response[StateResponse], error) {
	return s.do(req.Header(), func(p *player.Player) error {
		p.SetPlayingState(req.Msg.Playing)
		return nil
	})
}

// ClearPlayingState empties the queue.
func (s *PlayerService) ClearPlayingState(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StateResponse], error) {
	return s.do(req.Header(), transition((*player.Player).ClearPlayingState))
}

// EpisodeEnded reports that the current episode finished playing.
func (s *PlayerService) EpisodeEnded(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StateResponse], error) {
	return s.do(req.Header(), transition((*player.Player).EpisodeEnded))
}

// Subscribe streams the initial state followed by every state change.
func (s *PlayerService) Subscribe(
	ctx context.Context,
	req *connect.Request[Empty],
	stream *connect.ServerStream[message.Notification],
) error {
	sess, err := s.sessions.Get(req.Header().Get(SessionHeader))
	if err != nil {
		return toConnectError(err)
	}
	notifications := sess.Notifications

	adapter := &notificationStreamAdapter{stream: stream}
	var (
		subscriptionID string
		sendErr        error
	)
	sess.Player.Observe(func(snap player.Snapshot) {
		subscriptionID = notifications.Subscribe(adapter)
		sendErr = adapter.Send(&notification.Notification{
			Type:       notification.TypeInitialState,
			SequenceNo: notifications.NextSequenceNo(),
			SessionID:  sess.ID,
			Snapshot:   snap,
		})
	})
	if sendErr != nil {
		notifications.Unsubscribe(subscriptionID)
		return sendErr
	}
	zlog.Debug().Msgf("rpc subscriber joined: session=%s subscription=%s", sess.ID, subscriptionID)

	// Wait for context cancellation or session end
	select {
	case <-ctx.Done():
	case <-notifications.Done():
	}

	notifications.Unsubscribe(subscriptionID)
	zlog.Debug().Msgf("rpc subscriber left: session=%s subscription=%s", sess.ID, subscriptionID)
	return nil
}

// do runs fn against the caller's player and returns the resulting state.
func (s *PlayerService) do(header http.Header, fn func(*player.Player) error) (*connect.Response[StateResponse], error) {
	sess, err := s.sessions.Get(header.Get(SessionHeader))
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := fn(sess.Player); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&StateResponse{
		State: message.FromSnapshot(sess.Player.Snapshot()),
	}), nil
}

func transition(fn func(*player.Player)) func(*player.Player) error {
	return func(p *player.Player) error {
		fn(p)
		return nil
	}
}

// toConnectError maps domain errors to Connect codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, session.ErrInvalidSession):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, provider.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, player.ErrEmptyList), errors.Is(err, player.ErrIndexOutOfRange):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		zlog.Error().Msgf("rpc call failed: %v", err)
		return connect.NewError(connect.CodeInternal, err)
	}
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[message.Notification]
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream.Send(message.FromNotification(n))
}
