package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	"github.com/osa030/podplay/internal/api/message"
)

// Client is a player service client bound to one session.
type Client struct {
	sessionID string

	openSession       *connect.Client[OpenSessionRequest, OpenSessionResponse]
	getState          *connect.Client[Empty, StateResponse]
	play              *connect.Client[PlayRequest, StateResponse]
	playList          *connect.Client[PlayListRequest, StateResponse]
	playNext          *connect.Client[Empty, StateResponse]
	playPrevious      *connect.Client[Empty, StateResponse]
	togglePlay        *connect.Client[Empty, StateResponse]
	toggleLoop        *connect.Client[Empty, StateResponse]
	toggleShuffle     *connect.Client[Empty, StateResponse]
	setPlayingState   *connect.Client[SetPlayingStateRequest, StateResponse]
	clearPlayingState *connect.Client[Empty, StateResponse]
	episodeEnded      *connect.Client[Empty, StateResponse]
	subscribe         *connect.Client[Empty, message.Notification]
}

// NewClient creates a client for the server at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)

	return &Client{
		openSession:       connect.NewClient[OpenSessionRequest, OpenSessionResponse](httpClient, baseURL+OpenSessionProcedure, opts...),
		getState:          connect.NewClient[Empty, StateResponse](httpClient, baseURL+GetStateProcedure, opts...),
		play:              connect.NewClient[PlayRequest, StateResponse](httpClient, baseURL+PlayProcedure, opts...),
		playList:          connect.NewClient[PlayListRequest, StateResponse](httpClient, baseURL+PlayListProcedure, opts...),
		playNext:          connect.NewClient[Empty, StateResponse](httpClient, baseURL+PlayNextProcedure, opts...),
		playPrevious:      connect.NewClient[Empty, StateResponse](httpClient, baseURL+PlayPreviousProcedure, opts...),
		togglePlay:        connect.NewClient[Empty, StateResponse](httpClient, baseURL+TogglePlayProcedure, opts...),
		toggleLoop:        connect.NewClient[Empty, StateResponse](httpClient, baseURL+ToggleLoopProcedure, opts...),
		toggleShuffle:     connect.NewClient[Empty, StateResponse](httpClient, baseURL+ToggleShuffleProcedure, opts...),
		setPlayingState:   connect.NewClient[SetPlayingStateRequest, StateResponse](httpClient, baseURL+SetPlayingStateProcedure, opts...),
		clearPlayingState: connect.NewClient[Empty, StateResponse](httpClient, baseURL+ClearPlayingStateProcedure, opts...),
		episodeEnded:      connect.NewClient[Empty, StateResponse](httpClient, baseURL+EpisodeEndedProcedure, opts...),
		subscribe:         connect.NewClient[Empty, message.Notification](httpClient, baseURL+SubscribeProcedure, opts...),
	}
}

// SessionID returns the session the client is bound to.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Open resumes the given session or opens a new one, and binds the client to it.
func (c *Client) Open(ctx context.Context, sessionID string) (*OpenSessionResponse, error) {
	resp, err := c.openSession.CallUnary(ctx, connect.NewRequest(&OpenSessionRequest{SessionID: sessionID}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open session")
	}
	c.sessionID = resp.Msg.SessionID
	return resp.Msg, nil
}

func (c *Client) State(ctx context.Context) (message.State, error) {
	return call(ctx, c, c.getState, &Empty{})
}

func (c *Client) Play(ctx context.Context, episodeID string) (message.State, error) {
	return call(ctx, c, c.play, &PlayRequest{EpisodeID: episodeID})
}

func (c *Client) PlayList(ctx context.Context, episodeIDs []string, index int) (message.State, error) {
	return call(ctx, c, c.playList, &PlayListRequest{EpisodeIDs: episodeIDs, Index: index})
}

func (c *Client) PlayNext(ctx context.Context) (message.State, error) {
	return call(ctx, c, c.playNext, &Empty{})
}

func (c *Client) PlayPrevious(ctx context.Context) (message.State, error) {
	return call(ctx, c, c.playPrevious, &Empty{})
}

func (c *Client) TogglePlay(ctx context.Context) (message.State, error) {
	return call(ctx, c, c.togglePlay, &Empty{})
}

func (c *Client) ToggleLoop(ctx context.Context) (message.State, error) {
	return call(ctx, c, c.toggleLoop, &Empty{})
}

func (c *Client) ToggleShuffle(ctx context.Context) (message.State, error) {
	return call(ctx, c, c.toggleShuffle, &Empty{})
}

func (c *Client) SetPlayingState(ctx context.Context, playing bool) (message.State, error) {
	return call(ctx, c, c.setPlayingState, &SetPlayingStateRequest{Playing: playing})
}

func (c *Client) ClearPlayingState(ctx context.Context) (message.State, error) {
	return call(ctx, c, c.clearPlayingState, &Empty{})
}

func (c *Client) EpisodeEnded(ctx context.Context) (message.State, error) {
	return call(ctx, c, c.episodeEnded, &Empty{})
}

// Subscribe streams notifications to fn until the stream ends, ctx is done or
// fn returns an error.
func (c *Client) Subscribe(ctx context.Context, fn func(*message.Notification) error) error {
	req := connect.NewRequest(&Empty{})
	req.Header().Set(SessionHeader, c.sessionID)

	stream, err := c.subscribe.CallServerStream(ctx, req)
	if err != nil {
		return errors.Wrap(err, "failed to subscribe")
	}
	defer stream.Close()

	for stream.Receive() {
		if err := fn(stream.Msg()); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "notification stream failed")
	}
	return nil
}

func call[Req any](ctx context.Context, c *Client, rpc *connect.Client[Req, StateResponse], msg *Req) (message.State, error) {
	req := connect.NewRequest(msg)
	req.Header().Set(SessionHeader, c.sessionID)

	resp, err := rpc.CallUnary(ctx, req)
	if err != nil {
		return message.State{}, err
	}
	return resp.Msg.State, nil
}
