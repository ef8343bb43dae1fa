package connect

import "github.com/osa030/podplay/internal/api/message"

// ServiceName is the fully-qualified name of the player service.
const ServiceName = "podplay.v1.PlayerService"

// Procedure paths of the player service.
const (
	OpenSessionProcedure       = "/" + ServiceName + "/OpenSession"
	GetStateProcedure          = "/" + ServiceName + "/GetState"
	PlayProcedure              = "/" + ServiceName + "/Play"
	PlayListProcedure          = "/" + ServiceName + "/PlayList"
	PlayNextProcedure          = "/" + ServiceName + "/PlayNext"
	PlayPreviousProcedure      = "/" + ServiceName + "/PlayPrevious"
	TogglePlayProcedure        = "/" + ServiceName + "/TogglePlay"
	ToggleLoopProcedure        = "/" + ServiceName + "/ToggleLoop"
	ToggleShuffleProcedure     = "/" + ServiceName + "/ToggleShuffle"
	SetPlayingStateProcedure   = "/" + ServiceName + "/SetPlayingState"
	ClearPlayingStateProcedure = "/" + ServiceName + "/ClearPlayingState"
	EpisodeEndedProcedure      = "/" + ServiceName + "/EpisodeEnded"
	SubscribeProcedure         = "/" + ServiceName + "/Subscribe"
)

// SessionHeader carries the player session ID on every call but OpenSession.
const SessionHeader = "X-Session-Id"

// OpenSessionRequest resumes the given session, or opens a new one when empty or unknown.
type OpenSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type OpenSessionResponse struct {
	SessionID string        `json:"session_id"`
	Created   bool          `json:"created"`
	State     message.State `json:"state"`
}

// Empty is the request of calls without arguments.
type Empty struct{}

// StateResponse is the player state after a call.
type StateResponse struct {
	State message.State `json:"state"`
}

type PlayRequest struct {
	EpisodeID string `json:"episode_id"`
}

type PlayListRequest struct {
	EpisodeIDs []string `json:"episode_ids"`
	Index      int      `json:"index"`
}

type SetPlayingStateRequest struct {
	Playing bool `json:"playing"`
}
