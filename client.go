package main

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 150 // input at 60 Hz plus protocol overhead
	maxNameLen        = 16
)

// Client represents one WebSocket session. After authentication it can
// hold at most one match bridge; the match is reached only through it.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string

	userID   uuid.UUID
	username string
	authed   bool

	mu     sync.Mutex
	bridge *SessionBridge
	queued bool

	closed atomic.Bool

	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.closed.Store(true)
		c.detach()
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Debugw("ws error", "error", err)
			}
			break
		}

		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			Log.Warnw("connection rate limit exceeded, disconnecting", "addr", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection. Frames with
// the 0xFF marker byte go out as binary (snapshots).
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		Log.Errorw("marshal error", "error", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary queues bytes as a binary WebSocket frame
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}

	switch env.T {
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgAuth:
		c.handleAuth(env.D)
	case MsgGuest:
		c.handleGuest(env.D)
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgInput:
		c.handleInput(env.D)
	case MsgLeave:
		c.handleLeave()
	case MsgPing:
		c.handlePing(env.D)
	}
}

func (c *Client) welcome() {
	c.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{
		UserID:     c.userID.String(),
		ServerTime: unixMillis(),
	}})
}

func (c *Client) handleRegister(data json.RawMessage) {
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.userID = id
	c.username = msg.Username
	c.authed = true
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{UserID: id.String(), Username: c.username, Token: token}})
	c.welcome()
}

func (c *Client) handleLogin(data json.RawMessage) {
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.userID = id
	c.username = msg.Username
	c.authed = true
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{UserID: id.String(), Username: c.username, Token: token}})
	c.welcome()
}

func (c *Client) handleAuth(data json.RawMessage) {
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, username, err := c.hub.auth.VerifyToken(msg.Token)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.userID = id
	c.username = username
	c.authed = true
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{UserID: id.String(), Username: username}})
	c.welcome()
}

func (c *Client) handleGuest(data json.RawMessage) {
	var msg GuestMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, name, err := c.hub.auth.Guest(msg.Name)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.userID = id
	c.username = name
	c.authed = true
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{UserID: id.String(), Username: name}})
	c.welcome()
}

// handleJoin routes a join request into matchmaking. Unknown ship
// archetypes are rejected here, before anything is queued.
func (c *Client) handleJoin(data json.RawMessage) {
	if !c.authed {
		c.SendJSON(Envelope{T: MsgJoinRejected, Data: JoinRejectedMsg{Reason: "unauthenticated"}})
		return
	}
	var msg JoinMatchMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.ShipType == "" {
		msg.ShipType = DefaultShipType
	}
	ship, ok := LookupShipClass(msg.ShipType)
	if !ok {
		c.SendJSON(Envelope{T: MsgJoinRejected, Data: JoinRejectedMsg{Reason: "unknown_ship"}})
		return
	}

	c.mu.Lock()
	busy := c.bridge != nil || c.queued
	c.mu.Unlock()
	if busy {
		c.SendJSON(Envelope{T: MsgJoinRejected, Data: JoinRejectedMsg{Reason: "already_joined"}})
		return
	}

	if msg.MatchID != "" {
		c.joinSpecific(msg.MatchID, ship)
		return
	}

	qp := queuedPlayer{
		userID:   c.userID,
		name:     c.username,
		ship:     ship,
		client:   c,
		queuedAt: time.Now(),
	}
	if !c.hub.mm.Enqueue(qp) {
		c.SendJSON(Envelope{T: MsgJoinRejected, Data: JoinRejectedMsg{Reason: "queue_unavailable"}})
		return
	}
	c.mu.Lock()
	c.queued = true
	c.mu.Unlock()
}

// joinSpecific targets one lobby directly; a Running match is closed
func (c *Client) joinSpecific(matchID string, ship *ShipClass) {
	id, err := uuid.Parse(matchID)
	if err != nil {
		c.SendJSON(Envelope{T: MsgJoinRejected, Data: JoinRejectedMsg{Reason: "not_found"}})
		return
	}
	m := c.hub.mm.GetMatch(id)
	if m == nil {
		c.SendJSON(Envelope{T: MsgJoinRejected, Data: JoinRejectedMsg{Reason: "not_found"}})
		return
	}
	bridge, rep := m.Join(c.userID, c.username, ship)
	if bridge == nil {
		c.SendJSON(Envelope{T: MsgJoinRejected, Data: JoinRejectedMsg{Reason: rep.reason}})
		return
	}
	c.AttachMatch(m, bridge, rep)
}

// AttachMatch binds a granted lobby slot to this session. Called by
// the matchmaker goroutine.
func (c *Client) AttachMatch(m *Match, bridge *SessionBridge, rep joinReply) {
	if c.closed.Load() {
		bridge.MarkDisconnected()
		return
	}
	c.mu.Lock()
	c.bridge = bridge
	c.queued = false
	c.mu.Unlock()

	go c.pumpBridge(bridge)

	c.SendJSON(Envelope{T: MsgMatchJoined, Data: MatchJoinedMsg{
		MatchID: m.ID.String(),
		Seed:    rep.seed,
		Slot:    rep.slot,
		Players: rep.others,
	}})
}

// pumpBridge forwards match outbox frames onto the socket until the
// match releases the slot, then drains what is left.
func (c *Client) pumpBridge(bridge *SessionBridge) {
	forward := func(m OutMsg) {
		if m.Binary {
			c.SendBinary(m.Data)
		} else {
			c.SendRaw(m.Data)
		}
	}
	for {
		select {
		case m := <-bridge.Outbox():
			forward(m)
		case <-bridge.Done():
			for {
				select {
				case m := <-bridge.Outbox():
					forward(m)
				default:
					c.mu.Lock()
					if c.bridge == bridge {
						c.bridge = nil
					}
					c.mu.Unlock()
					return
				}
			}
		}
	}
}

func (c *Client) handleInput(data json.RawMessage) {
	c.mu.Lock()
	bridge := c.bridge
	c.mu.Unlock()
	if bridge == nil {
		return
	}
	var msg InputTickMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	bridge.Inputs.Push(Input{
		Seq:      msg.Seq,
		Throttle: msg.Throttle,
		Steer:    msg.Steer,
		Shoot:    msg.Shoot,
		AimYaw:   msg.AimYaw,
	})
}

// handleLeave removes the session from the queue or marks its slot
// disconnected. Issuing it twice is equivalent to once.
func (c *Client) handleLeave() {
	c.detach()
}

func (c *Client) detach() {
	c.mu.Lock()
	bridge := c.bridge
	queued := c.queued
	c.queued = false
	c.mu.Unlock()

	if queued {
		c.hub.mm.Dequeue(c.userID)
	}
	if bridge != nil {
		bridge.MarkDisconnected()
	}
}

func (c *Client) handlePing(data json.RawMessage) {
	var msg PingMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.SendJSON(Envelope{T: MsgPong, Data: PongMsg{T: msg.T, ServerTime: unixMillis()}})
}
