package main

import "encoding/json"

// Client -> Server message types
const (
	MsgRegister = "register"
	MsgLogin    = "login"
	MsgAuth     = "auth"
	MsgGuest    = "guest"
	MsgJoin     = "join_match"
	MsgInput    = "input_tick"
	MsgLeave    = "leave_match"
	MsgPing     = "ping"
)

// Server -> Client message types. Snapshots travel as msgpack binary
// frames, everything else as JSON text envelopes.
const (
	MsgWelcome      = "welcome"
	MsgAuthOK       = "auth_ok"
	MsgMatchJoined  = "match_joined"
	MsgJoinRejected = "join_rejected"
	MsgMatchEnd     = "match_end"
	MsgPong         = "pong"
	MsgError        = "error"
)

// Envelope wraps all outgoing JSON messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages — json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// RegisterMsg creates an account
type RegisterMsg struct {
	Username string `json:"u"`
	Password string `json:"p"`
}

// LoginMsg authenticates by credentials
type LoginMsg struct {
	Username string `json:"u"`
	Password string `json:"p"`
}

// AuthMsg authenticates by token
type AuthMsg struct {
	Token string `json:"tok"`
}

// GuestMsg creates a throwaway identity
type GuestMsg struct {
	Name string `json:"n"`
}

// AuthOKMsg confirms authentication
type AuthOKMsg struct {
	UserID   string `json:"uid"`
	Username string `json:"u"`
	Token    string `json:"tok,omitempty"`
}

// WelcomeMsg is sent once the session is ready
type WelcomeMsg struct {
	UserID     string `json:"uid"`
	ServerTime uint64 `json:"st"`
}

// JoinMatchMsg requests queue entry (or a specific lobby)
type JoinMatchMsg struct {
	MatchID  string `json:"mid,omitempty"`
	ShipType string `json:"ship"`
}

// InputTickMsg is the per-tick client intent
type InputTickMsg struct {
	Seq      uint32  `json:"q"`
	Throttle float64 `json:"th"`
	Steer    float64 `json:"st"`
	Shoot    bool    `json:"sh"`
	AimYaw   float64 `json:"ay"`
}

// PingMsg carries a client timestamp
type PingMsg struct {
	T uint64 `json:"t"`
}

// PongMsg echoes it with the server clock
type PongMsg struct {
	T          uint64 `json:"t"`
	ServerTime uint64 `json:"st"`
}

// PlayerInfoMsg describes a match participant at join time
type PlayerInfoMsg struct {
	Slot     int    `json:"s"`
	UserID   string `json:"uid"`
	Name     string `json:"n"`
	ShipType string `json:"ship"`
}

// MatchJoinedMsg confirms a lobby slot
type MatchJoinedMsg struct {
	MatchID string          `json:"mid"`
	Seed    uint64          `json:"seed"`
	Slot    int             `json:"s"`
	Players []PlayerInfoMsg `json:"players"`
}

// JoinRejectedMsg carries the rejection reason ("full", "unknown_ship", ...)
type JoinRejectedMsg struct {
	Reason string `json:"reason"`
}

// PlayerEndStats is one row of the end-of-match scoreboard
type PlayerEndStats struct {
	UserID      string  `json:"uid"`
	Slot        int     `json:"s"`
	Kills       int     `json:"k"`
	DamageDealt float64 `json:"dd"`
	ShotsFired  int     `json:"sf"`
	ShotsHit    int     `json:"sh"`
	Placement   int     `json:"pl"`
}

// MatchEndMsg is the terminal message for a match
type MatchEndMsg struct {
	WinnerUserID string           `json:"winner,omitempty"`
	Stats        []PlayerEndStats `json:"stats"`
}

// ErrorMsg sends an error to the client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// marshalEnvelope builds the wire bytes for a typed JSON message
func marshalEnvelope(t string, data interface{}) ([]byte, error) {
	return json.Marshal(Envelope{T: t, Data: data})
}
