package connect

import (
	"net/http"

	"connectrpc.com/connect"
)

// NewPlayerServiceHandler builds an HTTP handler that serves the player service.
// It returns the path prefix to mount the handler on.
func NewPlayerServiceHandler(svc *PlayerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(OpenSessionProcedure, connect.NewUnaryHandler(OpenSessionProcedure, svc.OpenSession, opts...))
	mux.Handle(GetStateProcedure, connect.NewUnaryHandler(GetStateProcedure, svc.GetState, opts...))
	mux.Handle(PlayProcedure, connect.NewUnaryHandler(PlayProcedure, svc.Play, opts...))
	mux.Handle(PlayListProcedure, connect.NewUnaryHandler(PlayListProcedure, svc.PlayList, opts...))
	mux.Handle(PlayNextProcedure, connect.NewUnaryHandler(PlayNextProcedure, svc.PlayNext, opts...))
	mux.Handle(PlayPreviousProcedure, connect.NewUnaryHandler(PlayPreviousProcedure, svc.PlayPrevious, opts...))
	mux.Handle(TogglePlayProcedure, connect.NewUnaryHandler(TogglePlayProcedure, svc.TogglePlay, opts...))
	mux.Handle(ToggleLoopProcedure, connect.NewUnaryHandler(ToggleLoopProcedure, svc.ToggleLoop, opts...))
	mux.Handle(ToggleShuffleProcedure, connect.NewUnaryHandler(ToggleShuffleProcedure, svc.ToggleShuffle, opts...))
	mux.Handle(SetPlayingStateProcedure, connect.NewUnaryHandler(SetPlayingStateProcedure, svc.SetPlayingState, opts...))
	mux.Handle(ClearPlayingStateProcedure, connect.NewUnaryHandler(ClearPlayingStateProcedure, svc.ClearPlayingState, opts...))
	mux.Handle(EpisodeEndedProcedure, connect.NewUnaryHandler(EpisodeEndedProcedure, svc.EpisodeEnded, opts...))
	mux.Handle(SubscribeProcedure, connect.NewServerStreamHandler(SubscribeProcedure, svc.Subscribe, opts...))

	return "/" + ServiceName + "/", mux
}
