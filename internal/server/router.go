package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Tyrowin/planning-poker/internal/poker"
	"github.com/Tyrowin/planning-poker/internal/room"
	"github.com/Tyrowin/planning-poker/pkg/logger"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var errMissingAck = errors.New("request requires an ack")

// handlerFunc runs one decoded message. send reports whether a reply goes
// back to the sender when it asked for one.
type handlerFunc func(ctx context.Context, conn poker.Conn, raw json.RawMessage) (reply any, send bool, err error)

type route struct {
	needsAck bool
	handle   handlerFunc
}

// Router maps inbound message types to poker handlers.
type Router struct {
	service  *poker.Service
	validate *validator.Validate
	log      logger.Logger
	routes   map[string]route
}

func NewRouter(service *poker.Service, log logger.Logger) *Router {
	r := &Router{
		service:  service,
		validate: validator.New(),
		log:      log,
	}
	r.routes = r.buildRoutes()
	return r
}

func (r *Router) buildRoutes() map[string]route {
	svc, v := r.service, r.validate

	return map[string]route{
		poker.TypeCreateRoom: {needsAck: true, handle: decoded(v,
			func(ctx context.Context, _ poker.Conn, req poker.CreateRoomRequest) (any, bool, error) {
				return svc.CreateRoom(ctx, req), true, nil
			})},
		poker.TypeCheckRoomAvailability: {needsAck: true, handle: decoded(v,
			func(ctx context.Context, _ poker.Conn, req poker.RoomRequest) (any, bool, error) {
				return svc.CheckAvailability(ctx, req), true, nil
			})},
		poker.TypeConnectRoom: {needsAck: true, handle: decoded(v,
			func(ctx context.Context, conn poker.Conn, req poker.ConnectRoomRequest) (any, bool, error) {
				reply, err := svc.ConnectToRoom(ctx, conn, req)
				if err != nil {
					return nil, false, err
				}
				return reply, true, nil
			})},
		poker.TypeGetPlayers: {needsAck: true, handle: decoded(v,
			func(ctx context.Context, _ poker.Conn, req poker.RoomRequest) (any, bool, error) {
				return svc.GetPlayers(ctx, req), true, nil
			})},
		poker.TypeDisconnectPlayer: {handle: decoded(v,
			func(ctx context.Context, conn poker.Conn, req poker.DisconnectPlayerRequest) (any, bool, error) {
				svc.DisconnectPlayer(ctx, conn, req)
				return nil, true, nil
			})},
		poker.TypeUpdatePlayerName: {handle: decoded(v,
			func(ctx context.Context, conn poker.Conn, req poker.UpdatePlayerNameRequest) (any, bool, error) {
				return nil, true, svc.UpdatePlayerName(ctx, conn, req)
			})},
		poker.TypeUpdateModeratorStatus: {handle: decoded(v,
			func(ctx context.Context, conn poker.Conn, req poker.UpdateModeratorStatusRequest) (any, bool, error) {
				return nil, true, svc.UpdateModeratorStatus(ctx, conn, req)
			})},
		poker.TypeUpdateRoomName: {handle: decoded(v,
			func(ctx context.Context, conn poker.Conn, req poker.UpdateRoomNameRequest) (any, bool, error) {
				return nil, true, svc.UpdateRoomName(ctx, conn, req)
			})},
		poker.TypeChosenCard: {handle: decoded(v,
			func(ctx context.Context, conn poker.Conn, req poker.ChosenCardRequest) (any, bool, error) {
				return nil, true, svc.CastVote(ctx, conn, req)
			})},
		// The reply only signals that there was nothing to reveal.
		poker.TypeReviewEstimates: {handle: decoded(v,
			func(ctx context.Context, conn poker.Conn, req poker.RoomRequest) (any, bool, error) {
				revealed := svc.RevealEstimates(ctx, conn, req)
				return nil, !revealed, nil
			})},
		poker.TypeGetFinalAverage: {handle: decoded(v,
			func(ctx context.Context, conn poker.Conn, req poker.RoomRequest) (any, bool, error) {
				return nil, true, svc.FinalAverage(ctx, conn, req)
			})},
		poker.TypeRestartGame: {handle: decoded(v,
			func(ctx context.Context, conn poker.Conn, req poker.RoomRequest) (any, bool, error) {
				return nil, true, svc.RestartRound(ctx, conn, req)
			})},
	}
}

// decoded unmarshals and validates the payload before calling fn.
func decoded[T any](v *validator.Validate, fn func(context.Context, poker.Conn, T) (any, bool, error)) handlerFunc {
	return func(ctx context.Context, conn poker.Conn, raw json.RawMessage) (any, bool, error) {
		var req T
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &req); err != nil {
				return nil, false, fmt.Errorf("decode payload: %v: %w", err, room.ErrValidation)
			}
		}
		if err := v.Struct(req); err != nil {
			return nil, false, fmt.Errorf("%v: %w", err, room.ErrValidation)
		}
		return fn(ctx, conn, req)
	}
}

// Route dispatches one envelope. A non-nil error means the connection broke
// the protocol and must be closed.
func (r *Router) Route(ctx context.Context, s *session, env Envelope) error {
	ctx = logger.WithConnID(ctx, s.ID())

	rt, ok := r.routes[env.Type]
	if !ok {
		incHandlerError("unknown", CodeUnknownType)
		r.log.Warn(ctx, "Unknown message type", zap.String("type", env.Type))
		if env.Ack != nil {
			s.reply(env.Ack, TypeError, ErrorPayload{
				Code:    CodeUnknownType,
				Message: fmt.Sprintf("unknown message type %q", env.Type),
			})
		}
		return nil
	}

	if rt.needsAck && env.Ack == nil {
		incHandlerError(env.Type, CodeValidation)
		return fmt.Errorf("%s: %w", env.Type, errMissingAck)
	}

	incHandled(env.Type)
	r.dispatch(ctx, s, env, rt)
	return nil
}

func (r *Router) dispatch(ctx context.Context, s *session, env Envelope, rt route) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error(ctx, "Recovered from panic in handler",
				zap.String("type", env.Type),
				zap.Any("panic", p),
				zap.Stack("stack"))
			r.fail(ctx, s, env, fmt.Errorf("handler panic: %v", p))
		}
	}()

	reply, send, err := rt.handle(ctx, s, env.Payload)
	if err != nil {
		r.fail(ctx, s, env, err)
		return
	}

	if send && env.Ack != nil {
		s.reply(env.Ack, TypeAck, reply)
	}
}

func (r *Router) fail(ctx context.Context, s *session, env Envelope, err error) {
	code := errorCode(err)
	incHandlerError(env.Type, code)

	r.log.Warn(ctx, "Handler failed",
		zap.String("type", env.Type),
		zap.String("code", code),
		zap.Error(err))

	if env.Ack != nil {
		s.reply(env.Ack, TypeError, ErrorPayload{Code: code, Message: err.Error()})
	}
}

// Disconnect runs the cleanup for a connection that went away.
func (r *Router) Disconnect(ctx context.Context, conn poker.Conn) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error(ctx, "Recovered from panic in disconnect handler",
				zap.Any("panic", p),
				zap.Stack("stack"))
		}
	}()

	r.service.RawDisconnect(ctx, conn)
}

// Stats exposes registry counts for metrics.
func (r *Router) Stats() (rooms, participants int) {
	return r.service.Stats()
}

func errorCode(err error) string {
	switch {
	case poker.IsNotFound(err):
		return CodeNotFound
	case errors.Is(err, room.ErrValidation):
		return CodeValidation
	case errors.Is(err, room.ErrDuplicateParticipant):
		return CodeConflict
	default:
		return CodeInternal
	}
}
