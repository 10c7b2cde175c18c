// Package room holds the in-memory registry of planning-poker rooms and the
// participants voting in them.
package room

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultUserName is assigned to participants that join without a name.
const DefaultUserName = "Anonymous"

// DefaultRoomName is given to rooms created without a name.
const DefaultRoomName = "Untitled room"

var (
	ErrNotFound             = errors.New("not found")
	ErrRoomNotFound         = fmt.Errorf("room %w", ErrNotFound)
	ErrParticipantNotFound  = fmt.Errorf("participant %w", ErrNotFound)
	ErrDuplicateParticipant = errors.New("participant already in room")
	ErrValidation           = errors.New("validation failed")
)

// Participant is a single connected voter. Vote is nil until the participant
// picks a card in the current round.
type Participant struct {
	UserID      string  `json:"userId"`
	UserName    string  `json:"userName"`
	IsModerator bool    `json:"isModerator"`
	Vote        *string `json:"vote"`
}

// HasVoted reports whether the participant cast a vote this round.
func (p Participant) HasVoted() bool {
	return p.Vote != nil
}

// Room is a read-only view of a registered room.
type Room struct {
	ID           string        `json:"roomId"`
	Name         string        `json:"roomName"`
	Participants []Participant `json:"participants"`
}

// Ballot is one voter's entry in a reveal.
type Ballot struct {
	ParticipantID string `json:"participantId"`
	UserName      string `json:"userName"`
	Vote          string `json:"vote"`
}

type record struct {
	id           string
	name         string
	participants []*Participant
}

func (r *record) indexOf(userID string) int {
	for i, p := range r.participants {
		if p.UserID == userID {
			return i
		}
	}
	return -1
}

// NewRoomID derives a short id from the room name under a random namespace,
// so two rooms with the same name still get different ids.
func NewRoomID(name string) string {
	full := uuid.NewSHA1(uuid.New(), []byte(name)).String()
	return strings.SplitN(full, "-", 2)[0]
}

func normalizeName(name string) string {
	return orDefault(name, DefaultUserName)
}

func orDefault(name, fallback string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func copyVote(v *string) *string {
	if v == nil {
		return nil
	}
	value := *v
	return &value
}

func (p *Participant) clone() Participant {
	c := *p
	c.Vote = copyVote(p.Vote)
	return c
}
