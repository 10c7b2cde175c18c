// Package poker implements the planning-poker event handlers. Each handler
// runs one state transition against the room registry and tells the
// connection what to broadcast; the service itself is stateless.
package poker

import (
	"context"
	"errors"

	"github.com/Tyrowin/planning-poker/internal/room"
	"github.com/Tyrowin/planning-poker/pkg/logger"
	"go.uber.org/zap"
)

// Conn is the connection a message arrived on, plus the broadcast channel of
// the transport. It is only valid while the message is being handled.
type Conn interface {
	ID() string
	Join(roomID string)
	Leave(roomID string)
	BroadcastToRoom(roomID, event string, payload any)
}

// Service wires the registry to the handlers.
type Service struct {
	registry *room.Registry
	log      logger.Logger
}

func NewService(registry *room.Registry, log logger.Logger) *Service {
	return &Service{
		registry: registry,
		log:      log,
	}
}

// Stats exposes registry counts for metrics.
func (s *Service) Stats() (rooms, participants int) {
	return s.registry.Stats()
}

func (s *Service) CreateRoom(ctx context.Context, req CreateRoomRequest) CreateRoomReply {
	roomID := s.registry.Create(req.RoomName)

	s.log.Info(ctx, "New room created",
		zap.String("roomId", roomID),
		zap.String("roomName", req.RoomName))

	return CreateRoomReply{RoomID: roomID}
}

// CheckAvailability returns the room, or nil when it does not exist.
func (s *Service) CheckAvailability(_ context.Context, req RoomRequest) *room.Room {
	found, ok := s.registry.Find(req.RoomID)
	if !ok {
		return nil
	}
	return &found
}

// ConnectToRoom adds the connection to the room as a participant. A nil
// reply means the room does not exist.
func (s *Service) ConnectToRoom(ctx context.Context, conn Conn, req ConnectRoomRequest) (*ConnectRoomReply, error) {
	if _, ok := s.registry.Find(req.RoomID); !ok {
		s.log.Warn(ctx, "Attempted to join non-existent room", zap.String("roomId", req.RoomID))
		return nil, nil
	}

	participant := room.Participant{
		UserID:      conn.ID(),
		UserName:    req.UserName,
		IsModerator: req.IsModerator,
	}
	if req.Vote != nil && *req.Vote != "" {
		participant.Vote = req.Vote
	}

	if err := s.registry.AddParticipant(req.RoomID, participant); err != nil {
		return nil, err
	}
	conn.Join(req.RoomID)

	joined, _ := s.registry.Find(req.RoomID)
	player, _ := s.registry.Participant(req.RoomID, conn.ID())

	s.log.Info(ctx, "New client connected",
		zap.String("roomId", joined.ID),
		zap.String("roomName", joined.Name),
		zap.Int("connections", len(joined.Participants)))

	conn.BroadcastToRoom(req.RoomID, EventAddPlayerList, PlayerList{
		Player:    player,
		Players:   joined.Participants,
		ShowAlert: true,
	})

	return &ConnectRoomReply{Room: joined, ParticipantID: conn.ID()}, nil
}

// DisconnectPlayer handles an explicit leave. Requests for participants that
// are already gone are ignored.
func (s *Service) DisconnectPlayer(ctx context.Context, conn Conn, req DisconnectPlayerRequest) {
	conn.Leave(req.RoomID)

	removed, ok := s.registry.RemoveParticipant(req.RoomID, req.UserID)
	if !ok {
		s.log.Debug(ctx, "Ignoring disconnect for unknown player",
			zap.String("roomId", req.RoomID),
			zap.String("userId", req.UserID))
		return
	}

	s.afterRemoval(ctx, conn, req.RoomID, removed)
}

// RawDisconnect cleans up after a dropped connection, whichever room it was in.
func (s *Service) RawDisconnect(ctx context.Context, conn Conn) {
	roomID, removed, ok := s.registry.RemoveParticipantEverywhere(conn.ID())
	if !ok {
		return
	}
	conn.Leave(roomID)

	s.afterRemoval(ctx, conn, roomID, removed)
}

func (s *Service) afterRemoval(ctx context.Context, conn Conn, roomID string, removed room.Participant) {
	s.log.Info(ctx, "Client has been disconnected from the room",
		zap.String("userId", removed.UserID),
		zap.String("roomId", roomID))

	if s.registry.IsEmpty(roomID) {
		s.registry.Delete(roomID)
		s.log.Info(ctx, "Room is empty and has been deleted", zap.String("roomId", roomID))
		return
	}

	players := s.registry.Participants(roomID)
	s.log.Info(ctx, "Room size", zap.String("roomId", roomID), zap.Int("connections", len(players)))

	conn.BroadcastToRoom(roomID, EventRemovePlayerList, PlayerLeft{
		Player:  removed,
		Players: players,
	})
}

func (s *Service) UpdatePlayerName(_ context.Context, conn Conn, req UpdatePlayerNameRequest) error {
	player, err := s.registry.RenameParticipant(req.RoomID, req.UserID, req.NewName)
	if err != nil {
		return err
	}

	s.broadcastPlayers(conn, req.RoomID, player)
	return nil
}

func (s *Service) UpdateModeratorStatus(ctx context.Context, conn Conn, req UpdateModeratorStatusRequest) error {
	player, err := s.registry.SetModerator(req.RoomID, req.UserID, req.IsModerator)
	if err != nil {
		return err
	}

	s.log.Debug(ctx, "Moderator status changed",
		zap.String("userId", req.UserID),
		zap.Bool("isModerator", req.IsModerator))

	s.broadcastPlayers(conn, req.RoomID, player)
	return nil
}

func (s *Service) broadcastPlayers(conn Conn, roomID string, player room.Participant) {
	conn.BroadcastToRoom(roomID, EventUpdatePlayersList, PlayerList{
		Player:    player,
		Players:   s.registry.Participants(roomID),
		ShowAlert: false,
	})
}

func (s *Service) UpdateRoomName(_ context.Context, conn Conn, req UpdateRoomNameRequest) error {
	if err := s.registry.Rename(req.RoomID, req.NewRoomName); err != nil {
		return err
	}

	conn.BroadcastToRoom(req.RoomID, EventUpdateRoomName, RoomName{
		RoomID:   req.RoomID,
		RoomName: req.NewRoomName,
	})
	return nil
}

// CastVote records the vote and announces that the participant is done,
// without revealing the value.
func (s *Service) CastVote(ctx context.Context, conn Conn, req ChosenCardRequest) error {
	if err := s.registry.SetVote(req.RoomID, req.UserID, req.Point); err != nil {
		return err
	}

	s.log.Info(ctx, "Player selected card", zap.String("userId", req.UserID))

	conn.BroadcastToRoom(req.RoomID, EventShowPlayerDone, PlayerDone{ParticipantID: req.UserID})
	return nil
}

// RevealEstimates broadcasts every ballot and the rounded-up mean. It returns
// false, and broadcasts nothing, when nobody has voted.
func (s *Service) RevealEstimates(ctx context.Context, conn Conn, req RoomRequest) bool {
	ballots := s.registry.Ballots(req.RoomID)
	if len(ballots) == 0 {
		s.log.Debug(ctx, "Nothing to reveal", zap.String("roomId", req.RoomID))
		return false
	}

	points := s.registry.CollectVotes(req.RoomID)
	result := FinalResult{
		RoomID:  req.RoomID,
		Average: Average(points),
		Votes:   ballots,
		Points:  points,
	}

	s.log.Info(ctx, "Estimates revealed",
		zap.String("roomId", req.RoomID),
		zap.Int("average", result.Average),
		zap.Int("votes", len(ballots)))

	conn.BroadcastToRoom(req.RoomID, EventRevealFinalResult, result)
	return true
}

// FinalAverage broadcasts only the mean, for clients that do not render the
// per-voter breakdown.
func (s *Service) FinalAverage(_ context.Context, conn Conn, req RoomRequest) error {
	if _, ok := s.registry.Find(req.RoomID); !ok {
		return room.ErrRoomNotFound
	}

	conn.BroadcastToRoom(req.RoomID, EventRevealFinalAverage, FinalAverage{
		RoomID:  req.RoomID,
		Average: Average(s.registry.CollectVotes(req.RoomID)),
	})
	return nil
}

func (s *Service) RestartRound(ctx context.Context, conn Conn, req RoomRequest) error {
	if err := s.registry.ClearVotes(req.RoomID); err != nil {
		return err
	}

	s.log.Info(ctx, "Game restarted in the room",
		zap.String("roomId", req.RoomID),
		zap.String("by", conn.ID()))

	conn.BroadcastToRoom(req.RoomID, EventRestartGameFront, RoundRestarted{RoomID: req.RoomID})
	return nil
}

func (s *Service) GetPlayers(_ context.Context, req RoomRequest) []room.Participant {
	return s.registry.Participants(req.RoomID)
}

// IsNotFound reports whether err means a room or participant was missing.
func IsNotFound(err error) bool {
	return errors.Is(err, room.ErrNotFound)
}
