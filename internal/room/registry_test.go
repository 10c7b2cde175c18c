package room

import (
	"fmt"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func userIDs(ps []Participant) []string {
	return lo.Map(ps, func(p Participant, _ int) string { return p.UserID })
}

func TestCreateThenFindIsEmpty(t *testing.T) {
	reg := NewRegistry()

	id := reg.Create("X")
	require.NotEmpty(t, id)

	found, ok := reg.Find(id)
	require.True(t, ok)
	require.Equal(t, "X", found.Name)
	require.Empty(t, found.Participants)
	require.True(t, reg.IsEmpty(id))
}

func TestCreateWithoutNameUsesDefault(t *testing.T) {
	reg := NewRegistry()

	for _, name := range []string{"", "   "} {
		found, ok := reg.Find(reg.Create(name))
		require.True(t, ok)
		require.Equal(t, DefaultRoomName, found.Name)
	}
}

func TestFindUnknownRoom(t *testing.T) {
	reg := NewRegistry()

	_, ok := reg.Find("nope")
	require.False(t, ok)
	require.True(t, reg.IsEmpty("nope"))
	require.Empty(t, reg.Participants("nope"))
}

func TestNewRoomIDIsShortAndVariesForSameName(t *testing.T) {
	a := NewRoomID("Sprint 12")
	b := NewRoomID("Sprint 12")

	require.Len(t, a, 8)
	require.NotEqual(t, a, b)
}

func TestCreateRetriesOnCollision(t *testing.T) {
	ids := []string{"same", "same", "other"}
	calls := 0
	reg := NewRegistry(WithIDGenerator(func(string) string {
		id := ids[calls]
		calls++
		return id
	}))

	first := reg.Create("a")
	second := reg.Create("b")

	require.Equal(t, "same", first)
	require.Equal(t, "other", second)
	require.Equal(t, 3, calls)
}

func TestCreateFallsBackWhenGeneratorKeepsColliding(t *testing.T) {
	reg := NewRegistry(WithIDGenerator(func(string) string { return "fixed" }))

	first := reg.Create("a")
	second := reg.Create("b")

	require.Equal(t, "fixed", first)
	require.NotEqual(t, first, second)
	_, ok := reg.Find(second)
	require.True(t, ok)
}

func TestAddParticipantToMissingRoom(t *testing.T) {
	reg := NewRegistry()

	err := reg.AddParticipant("ghost", Participant{UserID: "u1", UserName: "Alice"})
	require.ErrorIs(t, err, ErrRoomNotFound)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAddParticipantDefaultsName(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("r")

	require.NoError(t, reg.AddParticipant(id, Participant{UserID: "u1", UserName: "   "}))

	p, ok := reg.Participant(id, "u1")
	require.True(t, ok)
	require.Equal(t, DefaultUserName, p.UserName)
}

func TestParticipantsNeverDuplicate(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("r")

	ops := []struct {
		add    bool
		userID string
	}{
		{true, "a"}, {true, "b"}, {true, "a"}, {false, "a"}, {true, "a"},
		{true, "b"}, {false, "c"}, {true, "c"}, {false, "b"}, {true, "b"},
	}
	for _, op := range ops {
		if op.add {
			_ = reg.AddParticipant(id, Participant{UserID: op.userID, UserName: op.userID})
		} else {
			reg.RemoveParticipant(id, op.userID)
		}
		ids := userIDs(reg.Participants(id))
		require.Len(t, lo.Uniq(ids), len(ids))
	}

	require.ElementsMatch(t, []string{"a", "b", "c"}, userIDs(reg.Participants(id)))
	err := reg.AddParticipant(id, Participant{UserID: "a"})
	require.ErrorIs(t, err, ErrDuplicateParticipant)
}

func TestParticipantsSortedByName(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("r")

	for _, p := range []Participant{
		{UserID: "3", UserName: "charlie"},
		{UserID: "1", UserName: "Bob"},
		{UserID: "2", UserName: "alice"},
		{UserID: "0", UserName: "Bob"},
	} {
		require.NoError(t, reg.AddParticipant(id, p))
	}

	names := lo.Map(reg.Participants(id), func(p Participant, _ int) string {
		return p.UserName + "/" + p.UserID
	})
	require.Equal(t, []string{"alice/2", "Bob/0", "Bob/1", "charlie/3"}, names)
}

func TestReturnedParticipantsAreCopies(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("r")
	require.NoError(t, reg.AddParticipant(id, Participant{UserID: "u1", UserName: "Alice"}))
	require.NoError(t, reg.SetVote(id, "u1", "5"))

	list := reg.Participants(id)
	list[0].UserName = "Mallory"
	*list[0].Vote = "100"

	p, _ := reg.Participant(id, "u1")
	require.Equal(t, "Alice", p.UserName)
	require.Equal(t, "5", *p.Vote)
}

func TestRemoveParticipant(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("r")
	require.NoError(t, reg.AddParticipant(id, Participant{UserID: "u1", UserName: "Alice"}))

	_, ok := reg.RemoveParticipant("ghost", "u1")
	require.False(t, ok)
	_, ok = reg.RemoveParticipant(id, "ghost")
	require.False(t, ok)

	removed, ok := reg.RemoveParticipant(id, "u1")
	require.True(t, ok)
	require.Equal(t, "Alice", removed.UserName)
	require.True(t, reg.IsEmpty(id))

	_, stillThere := reg.Find(id)
	require.True(t, stillThere, "registry does not delete rooms on its own")
}

func TestRemoveParticipantEverywhere(t *testing.T) {
	reg := NewRegistry()
	a := reg.Create("a")
	b := reg.Create("b")
	require.NoError(t, reg.AddParticipant(a, Participant{UserID: "u1", UserName: "Alice"}))
	require.NoError(t, reg.AddParticipant(b, Participant{UserID: "u2", UserName: "Bob"}))

	roomID, p, ok := reg.RemoveParticipantEverywhere("u2")
	require.True(t, ok)
	require.Equal(t, b, roomID)
	require.Equal(t, "Bob", p.UserName)
	require.True(t, reg.IsEmpty(b))
	require.False(t, reg.IsEmpty(a))

	_, _, ok = reg.RemoveParticipantEverywhere("u2")
	require.False(t, ok)
}

func TestParticipantBelongsToOneRoom(t *testing.T) {
	reg := NewRegistry()
	a := reg.Create("a")
	b := reg.Create("b")
	require.NoError(t, reg.AddParticipant(a, Participant{UserID: "u1", UserName: "Alice"}))

	err := reg.AddParticipant(b, Participant{UserID: "u1", UserName: "Alice"})
	require.ErrorIs(t, err, ErrDuplicateParticipant)
	require.True(t, reg.IsEmpty(b))

	roomID, _, ok := reg.RemoveParticipantEverywhere("u1")
	require.True(t, ok)
	require.Equal(t, a, roomID)
	require.NoError(t, reg.AddParticipant(b, Participant{UserID: "u1", UserName: "Alice"}))
}

func TestDeleteRoom(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("r")

	reg.Delete(id)
	reg.Delete(id)

	_, ok := reg.Find(id)
	require.False(t, ok)
}

func TestSetVoteValidation(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("r")
	require.NoError(t, reg.AddParticipant(id, Participant{UserID: "u1", UserName: "Alice"}))

	tests := []struct {
		name                  string
		roomID, userID, value string
	}{
		{"empty room", "", "u1", "5"},
		{"empty user", id, "", "5"},
		{"empty value", id, "u1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.SetVote(tt.roomID, tt.userID, tt.value)
			require.ErrorIs(t, err, ErrValidation)

			p, _ := reg.Participant(id, "u1")
			require.Nil(t, p.Vote)
		})
	}
}

func TestSetVoteUnknownParticipant(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("r")

	require.ErrorIs(t, reg.SetVote(id, "ghost", "5"), ErrNotFound)
	require.ErrorIs(t, reg.SetVote("ghost", "u1", "5"), ErrParticipantNotFound)
}

func TestVotesCollectedAndCleared(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("r")
	for _, p := range []Participant{
		{UserID: "a", UserName: "Alice"},
		{UserID: "b", UserName: "Bob"},
		{UserID: "c", UserName: "Carol"},
	} {
		require.NoError(t, reg.AddParticipant(id, p))
	}
	require.NoError(t, reg.SetVote(id, "a", "3"))
	require.NoError(t, reg.SetVote(id, "c", "?"))

	require.Equal(t, []string{"3", "?"}, reg.CollectVotes(id))
	require.Equal(t, []Ballot{
		{ParticipantID: "a", UserName: "Alice", Vote: "3"},
		{ParticipantID: "c", UserName: "Carol", Vote: "?"},
	}, reg.Ballots(id))

	require.NoError(t, reg.ClearVotes(id))
	require.Empty(t, reg.CollectVotes(id))
	for _, p := range reg.Participants(id) {
		require.Nil(t, p.Vote)
	}

	require.ErrorIs(t, reg.ClearVotes("ghost"), ErrRoomNotFound)
}

func TestAddParticipantKeepsPriorVote(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("r")

	require.NoError(t, reg.AddParticipant(id, Participant{UserID: "u1", UserName: "Alice", Vote: strPtr("8")}))
	require.Equal(t, []string{"8"}, reg.CollectVotes(id))
}

func TestRenameAndModerator(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("old")
	require.NoError(t, reg.AddParticipant(id, Participant{UserID: "a", UserName: "Alice"}))
	require.NoError(t, reg.AddParticipant(id, Participant{UserID: "b", UserName: "Bob"}))

	require.NoError(t, reg.Rename(id, "new"))
	found, _ := reg.Find(id)
	require.Equal(t, "new", found.Name)
	require.ErrorIs(t, reg.Rename("ghost", "x"), ErrRoomNotFound)

	p, err := reg.RenameParticipant(id, "a", "")
	require.NoError(t, err)
	require.Equal(t, DefaultUserName, p.UserName)
	_, err = reg.RenameParticipant(id, "ghost", "x")
	require.ErrorIs(t, err, ErrParticipantNotFound)

	_, err = reg.SetModerator(id, "a", true)
	require.NoError(t, err)
	_, err = reg.SetModerator(id, "b", true)
	require.NoError(t, err)
	moderators := lo.Filter(reg.Participants(id), func(p Participant, _ int) bool { return p.IsModerator })
	require.Len(t, moderators, 2)
}

func TestStats(t *testing.T) {
	reg := NewRegistry()
	a := reg.Create("a")
	reg.Create("b")
	require.NoError(t, reg.AddParticipant(a, Participant{UserID: "u1"}))
	require.NoError(t, reg.AddParticipant(a, Participant{UserID: "u2"}))

	rooms, participants := reg.Stats()
	require.Equal(t, 2, rooms)
	require.Equal(t, 2, participants)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	id := reg.Create("r")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", n)
			_ = reg.AddParticipant(id, Participant{UserID: userID, UserName: userID})
			_ = reg.SetVote(id, userID, "5")
			_ = reg.Participants(id)
			_, _ = reg.Stats()
		}(i)
	}
	wg.Wait()

	require.Len(t, reg.Participants(id), 20)
	require.Len(t, reg.CollectVotes(id), 20)
}
