package connect

import (
	"context"

	"connectrpc.com/connect"

	"github.com/osa030/podplay/internal/app/session"
)

// SessionValidator checks that a session exists.
type SessionValidator interface {
	Validate(id string) error
}

// sessionInterceptor rejects calls whose session header is missing or unknown.
type sessionInterceptor struct {
	sessions SessionValidator
}

// NewSessionInterceptor creates an interceptor that validates the session header
// for every procedure except OpenSession.
func NewSessionInterceptor(sessions SessionValidator) connect.Interceptor {
	return &sessionInterceptor{sessions: sessions}
}

func (i *sessionInterceptor) check(procedure, id string) error {
	if procedure == OpenSessionProcedure {
		return nil
	}
	if id == "" {
		return connect.NewError(connect.CodeUnauthenticated, session.ErrInvalidSession)
	}
	if err := i.sessions.Validate(id); err != nil {
		return connect.NewError(connect.CodeUnauthenticated, err)
	}
	return nil
}

func (i *sessionInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		if err := i.check(req.Spec().Procedure, req.Header().Get(SessionHeader)); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (i *sessionInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *sessionInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := i.check(conn.Spec().Procedure, conn.RequestHeader().Get(SessionHeader)); err != nil {
			return err
		}
		return next(ctx, conn)
	}
}
