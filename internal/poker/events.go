package poker

import "github.com/Tyrowin/planning-poker/internal/room"

// Inbound message types.
const (
	TypeCreateRoom            = "create_room"
	TypeCheckRoomAvailability = "check_room_availability"
	TypeConnectRoom           = "connect_room"
	TypeDisconnectPlayer      = "disconnect_player"
	TypeUpdatePlayerName      = "update_player_name"
	TypeUpdateModeratorStatus = "update_user_moderator_status"
	TypeUpdateRoomName        = "update_room_name"
	TypeChosenCard            = "chosen_card"
	TypeReviewEstimates       = "review_estimates"
	TypeGetFinalAverage       = "get_final_average"
	TypeRestartGame           = "restart_game"
	TypeGetPlayers            = "get_players"
)

// Outbound broadcast types.
const (
	EventAddPlayerList      = "add_player_list"
	EventUpdatePlayersList  = "update_players_list"
	EventRemovePlayerList   = "remove_player_list"
	EventUpdateRoomName     = "update_room_name"
	EventShowPlayerDone     = "show_player_done"
	EventRevealFinalResult  = "reveal_final_result"
	EventRevealFinalAverage = "reveal_final_average"
	EventRestartGameFront   = "restart_game_front"
)

// Requests. Field tags drive validation at the transport boundary.

type CreateRoomRequest struct {
	RoomName string `json:"roomName" validate:"max=120"`
}

type RoomRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

type ConnectRoomRequest struct {
	RoomID      string  `json:"roomId" validate:"required"`
	UserName    string  `json:"userName" validate:"max=60"`
	IsModerator bool    `json:"isModerator"`
	Vote        *string `json:"vote" validate:"omitempty,max=16"`
}

type DisconnectPlayerRequest struct {
	RoomID string `json:"roomId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

type UpdatePlayerNameRequest struct {
	RoomID  string `json:"roomId" validate:"required"`
	UserID  string `json:"userId" validate:"required"`
	NewName string `json:"newName" validate:"max=60"`
}

type UpdateModeratorStatusRequest struct {
	RoomID      string `json:"roomId" validate:"required"`
	UserID      string `json:"userId" validate:"required"`
	IsModerator bool   `json:"isModerator"`
}

type UpdateRoomNameRequest struct {
	RoomID      string `json:"roomId" validate:"required"`
	NewRoomName string `json:"newRoomName" validate:"required,max=120"`
}

type ChosenCardRequest struct {
	RoomID string `json:"roomId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
	Point  string `json:"point" validate:"required,max=16"`
}

// Replies and broadcast payloads.

type CreateRoomReply struct {
	RoomID string `json:"roomId"`
}

type ConnectRoomReply struct {
	Room          room.Room `json:"room"`
	ParticipantID string    `json:"participantId"`
}

// PlayerList is sent whenever the membership or a member changes. ShowAlert
// tells clients whether to flash a "player online" notice.
type PlayerList struct {
	Player    room.Participant   `json:"player"`
	Players   []room.Participant `json:"players"`
	ShowAlert bool               `json:"showAlert"`
}

type PlayerLeft struct {
	Player  room.Participant   `json:"player"`
	Players []room.Participant `json:"players"`
}

type RoomName struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
}

type PlayerDone struct {
	ParticipantID string `json:"participantId"`
}

type FinalResult struct {
	RoomID  string        `json:"roomId"`
	Average int           `json:"average"`
	Votes   []room.Ballot `json:"votes"`
	Points  []string      `json:"points"`
}

type FinalAverage struct {
	RoomID  string `json:"roomId"`
	Average int    `json:"average"`
}

type RoundRestarted struct {
	RoomID string `json:"roomId"`
}
