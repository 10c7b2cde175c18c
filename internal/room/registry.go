package room

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// maxIDAttempts bounds how many short ids Create tries before falling back
// to a full UUID.
const maxIDAttempts = 16

// Registry owns every room and participant of the process. All methods are
// safe for concurrent use; reads hand out copies.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*record
	newID func(name string) string
}

// Option customises a Registry.
type Option func(*Registry)

// WithIDGenerator replaces the room id generator.
func WithIDGenerator(fn func(name string) string) Option {
	return func(r *Registry) {
		r.newID = fn
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms: make(map[string]*record),
		newID: NewRoomID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create stores a new empty room and returns its id. The id is unique among
// the rooms currently registered. A blank name becomes DefaultRoomName.
func (r *Registry) Create(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	name = orDefault(name, DefaultRoomName)

	id := r.newID(name)
	for attempt := 1; r.exists(id); attempt++ {
		if attempt >= maxIDAttempts {
			id = uuid.NewString()
			continue
		}
		id = r.newID(name)
	}

	r.rooms[id] = &record{id: id, name: name}
	return id
}

func (r *Registry) exists(id string) bool {
	_, ok := r.rooms[id]
	return ok
}

// Find returns the room with the given id.
func (r *Registry) Find(roomID string) (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return Room{ID: rec.id, Name: rec.name, Participants: sortedCopy(rec.participants)}, true
}

// Rename changes the display name of a room.
func (r *Registry) Rename(roomID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rooms[roomID]
	if !ok {
		return fmt.Errorf("rename %q: %w", roomID, ErrRoomNotFound)
	}
	rec.name = name
	return nil
}

// Delete removes the room and everyone in it.
func (r *Registry) Delete(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms, roomID)
}

// AddParticipant appends p to the room. A user id belongs to at most one room
// at a time, so joining while already a member anywhere fails with
// ErrDuplicateParticipant. An empty user name becomes DefaultUserName.
func (r *Registry) AddParticipant(roomID string, p Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rooms[roomID]
	if !ok {
		return fmt.Errorf("join %q: %w", roomID, ErrRoomNotFound)
	}
	if current, ok := r.roomOf(p.UserID); ok {
		return fmt.Errorf("join %q as %q, already in %q: %w", roomID, p.UserID, current, ErrDuplicateParticipant)
	}

	added := p.clone()
	added.UserName = normalizeName(p.UserName)
	rec.participants = append(rec.participants, &added)
	return nil
}

func (r *Registry) roomOf(userID string) (string, bool) {
	for id, rec := range r.rooms {
		if rec.indexOf(userID) != -1 {
			return id, true
		}
	}
	return "", false
}

// Participants returns the room members ordered by display name. The result
// is empty when the room does not exist.
func (r *Registry) Participants(roomID string) []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.rooms[roomID]
	if !ok {
		return []Participant{}
	}
	return sortedCopy(rec.participants)
}

// Participant looks up a single member of a room.
func (r *Registry) Participant(roomID, userID string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.lookup(roomID, userID)
	if !ok {
		return Participant{}, false
	}
	return p.clone(), true
}

func (r *Registry) lookup(roomID, userID string) (*Participant, bool) {
	rec, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	idx := rec.indexOf(userID)
	if idx == -1 {
		return nil, false
	}
	return rec.participants[idx], true
}

// RemoveParticipant drops userID from the room and returns what was removed.
func (r *Registry) RemoveParticipant(roomID, userID string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rooms[roomID]
	if !ok {
		return Participant{}, false
	}
	return rec.remove(userID)
}

// RemoveParticipantEverywhere removes userID from the room that holds it.
// AddParticipant keeps a user id in at most one room.
func (r *Registry) RemoveParticipantEverywhere(userID string) (string, Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rec := range r.rooms {
		if p, ok := rec.remove(userID); ok {
			return id, p, true
		}
	}
	return "", Participant{}, false
}

func (rec *record) remove(userID string) (Participant, bool) {
	idx := rec.indexOf(userID)
	if idx == -1 {
		return Participant{}, false
	}
	removed := rec.participants[idx]
	rec.participants = append(rec.participants[:idx], rec.participants[idx+1:]...)
	return *removed, true
}

// RenameParticipant changes a member's display name.
func (r *Registry) RenameParticipant(roomID, userID, name string) (Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.lookup(roomID, userID)
	if !ok {
		return Participant{}, fmt.Errorf("rename %q in %q: %w", userID, roomID, ErrParticipantNotFound)
	}
	p.UserName = normalizeName(name)
	return p.clone(), nil
}

// SetModerator flips the moderator flag of a member. Several members of the
// same room may be moderators at once.
func (r *Registry) SetModerator(roomID, userID string, isModerator bool) (Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.lookup(roomID, userID)
	if !ok {
		return Participant{}, fmt.Errorf("moderate %q in %q: %w", userID, roomID, ErrParticipantNotFound)
	}
	p.IsModerator = isModerator
	return p.clone(), nil
}

// SetVote records a vote. All three arguments are required.
func (r *Registry) SetVote(roomID, userID, value string) error {
	if roomID == "" || userID == "" || value == "" {
		return fmt.Errorf("vote: roomId, userId and value must be provided: %w", ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.lookup(roomID, userID)
	if !ok {
		return fmt.Errorf("vote by %q in %q: %w", userID, roomID, ErrParticipantNotFound)
	}
	p.Vote = &value
	return nil
}

// ClearVotes starts a new round by resetting every vote in the room.
func (r *Registry) ClearVotes(roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rooms[roomID]
	if !ok {
		return fmt.Errorf("clear votes in %q: %w", roomID, ErrRoomNotFound)
	}
	for _, p := range rec.participants {
		p.Vote = nil
	}
	return nil
}

// IsEmpty reports whether the room has no participants. A missing room is
// empty.
func (r *Registry) IsEmpty(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.rooms[roomID]
	return !ok || len(rec.participants) == 0
}

// CollectVotes returns the votes cast so far, skipping members who have not
// voted.
func (r *Registry) CollectVotes(roomID string) []string {
	return lo.Map(r.Ballots(roomID), func(b Ballot, _ int) string {
		return b.Vote
	})
}

// Ballots returns one entry per member who voted, in participant order.
func (r *Registry) Ballots(roomID string) []Ballot {
	voted := lo.Filter(r.Participants(roomID), func(p Participant, _ int) bool {
		return p.HasVoted()
	})
	return lo.Map(voted, func(p Participant, _ int) Ballot {
		return Ballot{ParticipantID: p.UserID, UserName: p.UserName, Vote: *p.Vote}
	})
}

// Stats returns the number of rooms and participants currently registered.
func (r *Registry) Stats() (rooms, participants int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.rooms {
		participants += len(rec.participants)
	}
	return len(r.rooms), participants
}

// sortedCopy orders members by display name using a case-insensitive
// collation, breaking ties by user id so the order is stable.
func sortedCopy(participants []*Participant) []Participant {
	out := lo.Map(participants, func(p *Participant, _ int) Participant {
		return p.clone()
	})

	col := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		if c := col.CompareString(out[i].UserName, out[j].UserName); c != 0 {
			return c < 0
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}
