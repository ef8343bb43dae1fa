package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podplay/internal/api/message"
	"github.com/osa030/podplay/internal/app/notification"
	"github.com/osa030/podplay/internal/app/player"
	"github.com/osa030/podplay/internal/app/session"
	"github.com/osa030/podplay/internal/domain/episode"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Command ops accepted on the player socket.
const (
	OpPlay          = "play"
	OpPlayList      = "play_list"
	OpPlayNext      = "play_next"
	OpPlayPrevious  = "play_previous"
	OpTogglePlay    = "toggle_play"
	OpToggleLoop    = "toggle_loop"
	OpToggleShuffle = "toggle_shuffle"
	OpSetPlaying    = "set_playing"
	OpClear         = "clear"
	OpEnded         = "ended"
)

// command is a player operation sent by the page.
type command struct {
	Op      string   `json:"op"`
	Slug    string   `json:"slug,omitempty"`
	Slugs   []string `json:"slugs,omitempty"`
	Index   int      `json:"index,omitempty"`
	Playing bool     `json:"playing,omitempty"`
}

// errorMessage reports a rejected command to the page.
type errorMessage struct {
	Type    string `json:"type"`
	Op      string `json:"op"`
	Message string `json:"message"`
}

// socketStream adapts a WebSocket connection to notification.Stream.
type socketStream struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socketStream) Send(n *notification.Notification) error {
	return s.write(message.FromNotification(n))
}

func (s *socketStream) write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *socketStream) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// handlePlayerSocket sends the initial state, then every state change, and
// applies the commands it receives to the session player.
func (s *Server) handlePlayerSocket(w http.ResponseWriter, r *http.Request) {
	sess, created := s.sessions.Open(s.sessionID(r))
	header := http.Header{}
	if created {
		header.Add("Set-Cookie", s.cookie(sess.ID).String())
	}

	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		zlog.Warn().Msgf("websocket upgrade failed: session=%s error=%v", sess.ID, err)
		return
	}
	defer conn.Close()

	stream := &socketStream{conn: conn}
	notifications := sess.Notifications

	var (
		subscriptionID string
		sendErr        error
	)
	sess.Player.Observe(func(snap player.Snapshot) {
		subscriptionID = notifications.Subscribe(stream)
		sendErr = stream.Send(&notification.Notification{
			Type:       notification.TypeInitialState,
			SequenceNo: notifications.NextSequenceNo(),
			SessionID:  sess.ID,
			Snapshot:   snap,
		})
	})
	defer notifications.Unsubscribe(subscriptionID)
	if sendErr != nil {
		zlog.Debug().Msgf("failed to send initial state: session=%s error=%v", sess.ID, sendErr)
		return
	}
	zlog.Debug().Msgf("player socket connected: session=%s subscription=%s", sess.ID, subscriptionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		s.readCommands(ctx, conn, stream, sess)
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			zlog.Debug().Msgf("player socket disconnected: session=%s", sess.ID)
			return
		case <-notifications.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := stream.ping(); err != nil {
				return
			}
		}
	}
}

func (s *Server) readCommands(ctx context.Context, conn *websocket.Conn, stream *socketStream, sess *session.Session) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zlog.Debug().Msgf("player socket read failed: session=%s error=%v", sess.ID, err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := s.sessions.Touch(sess.ID); err != nil {
			return
		}

		if err := s.apply(ctx, sess.Player, cmd); err != nil {
			zlog.Debug().Msgf("player command rejected: session=%s op=%s error=%v", sess.ID, cmd.Op, err)
			if err := stream.write(errorMessage{Type: "error", Op: cmd.Op, Message: err.Error()}); err != nil {
				return
			}
		}
	}
}

// apply runs a command against the player.
func (s *Server) apply(ctx context.Context, p *player.Player, cmd command) error {
	switch cmd.Op {
	case OpPlay:
		e, err := s.episodes.Episode(ctx, cmd.Slug)
		if err != nil {
			return err
		}
		p.Play(*e)
	case OpPlayList:
		episodes, err := s.commandList(ctx, cmd)
		if err != nil {
			return err
		}
		return p.PlayList(episodes, cmd.Index)
	case OpPlayNext:
		p.PlayNext()
	case OpPlayPrevious:
		p.PlayPrevious()
	case OpTogglePlay:
		p.TogglePlay()
	case OpToggleLoop:
		p.ToggleLoop()
	case OpToggleShuffle:
		p.ToggleShuffle()
	case OpSetPlaying:
		p.SetPlayingState(cmd.Playing)
	case OpClear:
		p.ClearPlayingState()
	case OpEnded:
		p.EpisodeEnded()
	default:
		return errors.Newf("unknown op %q", cmd.Op)
	}
	return nil
}

// commandList returns the listed slugs, or the home page list when none are given.
func (s *Server) commandList(ctx context.Context, cmd command) ([]episode.Episode, error) {
	if len(cmd.Slugs) > 0 {
		return s.episodes.Episodes(ctx, cmd.Slugs)
	}
	return s.episodes.Latest(ctx, s.config.HomeLimit)
}
