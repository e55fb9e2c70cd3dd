// Package channel implements the per-connection state machine and
// fan-out router that sits on top of the pairing store and connection
// registry (spec §4.6).
package channel

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"dentalgw/internal/kinds"
	"dentalgw/internal/logging"
	"dentalgw/internal/pairing"
	"dentalgw/internal/registry"
)

// ConnState is a connection's position in the ACCEPTED -> IDENTIFIED ->
// JOINED -> CLOSED state machine.
type ConnState string

const (
	StateAccepted   ConnState = "ACCEPTED"
	StateIdentified ConnState = "IDENTIFIED"
	StateJoined     ConnState = "JOINED"
	StateClosed     ConnState = "CLOSED"
)

// Message is the single JSON envelope shape every WebSocket text frame
// uses (spec §6's "type discriminator and exactly the fields enumerated
// in §4.6").
type Message struct {
	Type       string          `json:"type"`
	SessionID  string          `json:"session_id,omitempty"`
	DeviceType string          `json:"device_type,omitempty"`
	Code       string          `json:"code,omitempty"`
	ChannelID  string          `json:"channel_id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Sender delivers an outbound message to one connection. internal/api
// implements it over a gorilla websocket connection.
type Sender interface {
	Send(clientID string, msg Message) error
	Close(clientID string)
}

// whitelist enumerates, per state, the message types that don't draw a
// VALIDATION_ERROR (spec §4.6 table). audio_chunk covers both the binary
// frame shorthand and an explicit JSON audio_chunk message.
var whitelist = map[ConnState]map[string]bool{
	StateAccepted: {"identify": true, "mobile_init": true},
	StateIdentified: {
		"join_channel": true, "ping": true,
	},
	StateJoined: {
		"channel_message": true, "settings_sync": true, "audio_chunk": true,
		"ping": true,
	},
	StateClosed: {},
}

const maxViolations = 3

type session struct {
	mu         sync.Mutex
	conn       *registry.Conn
	state      ConnState
	violations int
	msgLimit   *rate.Limiter
	byteLimit  *rate.Limiter
}

// Router ties the pairing store and connection registry together and
// enforces the per-connection state machine, whitelist, and rate limits.
type Router struct {
	reg     *registry.Registry
	pairing *pairing.Store
	sender  Sender
	log     *logging.Logger

	msgRatePerSec  float64
	byteRatePerSec float64

	mu       sync.RWMutex
	sessions map[string]*session
}

// New builds a Router. msgRatePerSec and byteRatePerSec are the
// per-connection token-bucket rates (spec §4.6: 10 msg/s, 1 MB/s).
func New(reg *registry.Registry, store *pairing.Store, sender Sender, msgRatePerSec, byteRatePerSec float64, log *logging.Logger) *Router {
	return &Router{
		reg:            reg,
		pairing:        store,
		sender:         sender,
		log:            log,
		msgRatePerSec:  msgRatePerSec,
		byteRatePerSec: byteRatePerSec,
		sessions:       make(map[string]*session),
	}
}

// Accept registers a freshly-opened connection in ACCEPTED state.
func (r *Router) Accept(conn *registry.Conn) {
	r.reg.Register(conn)
	sess := &session{
		conn:      conn,
		state:     StateAccepted,
		msgLimit:  rate.NewLimiter(rate.Limit(r.msgRatePerSec), int(r.msgRatePerSec)),
		byteLimit: rate.NewLimiter(rate.Limit(r.byteRatePerSec), int(r.byteRatePerSec)),
	}
	r.mu.Lock()
	r.sessions[conn.ID] = sess
	r.mu.Unlock()
}

func (r *Router) sessionFor(clientID string) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[clientID]
	return sess, ok
}

// HandleText processes one JSON text frame from clientID.
func (r *Router) HandleText(clientID string, raw []byte) {
	sess, ok := r.sessionFor(clientID)
	if !ok {
		return
	}

	if !r.allow(sess, 0) {
		return
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.sendError(clientID, "VALIDATION_ERROR")
		return
	}

	sess.mu.Lock()
	state := sess.state
	sess.mu.Unlock()

	if !whitelist[state][msg.Type] {
		r.sendError(clientID, "VALIDATION_ERROR")
		return
	}

	switch msg.Type {
	case "identify":
		r.handleIdentify(clientID, sess, msg)
	case "mobile_init":
		r.handleMobileInit(clientID, sess, msg)
	case "join_channel":
		r.handleJoinChannel(clientID, sess, msg)
	case "ping":
		r.sender.Send(clientID, Message{Type: "pong"})
	case "channel_message", "settings_sync", "audio_chunk":
		r.fanOut(clientID, msg)
	}
}

// HandleBinary treats a binary frame as an audio_chunk payload (spec
// §6). Byte-rate limiting applies; message-count limiting does not.
func (r *Router) HandleBinary(clientID string, data []byte) {
	sess, ok := r.sessionFor(clientID)
	if !ok {
		return
	}
	if !r.allow(sess, len(data)) {
		return
	}

	sess.mu.Lock()
	state := sess.state
	sess.mu.Unlock()
	if !whitelist[state]["audio_chunk"] {
		r.sendError(clientID, "VALIDATION_ERROR")
		return
	}

	r.fanOut(clientID, Message{Type: "audio_chunk", Data: data})
}

// allow enforces the token-bucket limits and the 3-strikes close rule.
// byteCount of 0 means "control-plane message" (counted against msgLimit
// only); a positive byteCount means an audio frame (counted against
// byteLimit only, exempt from the message count per spec §4.6).
func (r *Router) allow(sess *session, byteCount int) bool {
	var ok bool
	if byteCount > 0 {
		ok = sess.byteLimit.AllowN(time.Now(), byteCount)
	} else {
		ok = sess.msgLimit.Allow()
	}
	if ok {
		return true
	}

	sess.mu.Lock()
	sess.violations++
	violations := sess.violations
	sess.mu.Unlock()

	r.sendError(sess.conn.ID, "RATE_LIMITED")
	if violations >= maxViolations {
		r.closeConnection(sess.conn.ID)
	}
	return false
}

func (r *Router) handleIdentify(clientID string, sess *session, msg Message) {
	sess.mu.Lock()
	sess.conn.SessionID = msg.SessionID
	sess.state = StateIdentified
	sess.mu.Unlock()
}

func (r *Router) handleJoinChannel(clientID string, sess *session, msg Message) {
	if _, ok := r.pairing.Lookup(msg.ChannelID); !ok {
		r.sendError(clientID, "INVALID_CHANNEL")
		return
	}
	if err := r.reg.Join(clientID, msg.ChannelID); err != nil {
		r.sendError(clientID, errorCode(err))
		return
	}

	sess.mu.Lock()
	sess.state = StateJoined
	sess.mu.Unlock()

	r.broadcastAdmin(clientID, msg.ChannelID, "client_joined")
}

// handleMobileInit combines identify + pair-claim + join atomically: any
// sub-failure leaves the connection in ACCEPTED (spec §4.6).
func (r *Router) handleMobileInit(clientID string, sess *session, msg Message) {
	rec, err := r.pairing.Claim(context.Background(), msg.Code, msg.SessionID)
	if err != nil {
		r.sendError(clientID, errorCode(err))
		return
	}

	sess.mu.Lock()
	sess.conn.SessionID = msg.SessionID
	sess.mu.Unlock()

	if err := r.reg.Join(clientID, rec.ChannelID); err != nil {
		r.sendError(clientID, errorCode(err))
		return
	}

	sess.mu.Lock()
	sess.state = StateJoined
	sess.mu.Unlock()

	r.broadcastAdmin(clientID, rec.ChannelID, "client_joined")
	r.broadcastAdmin(clientID, rec.ChannelID, "pairing_success")
}

// fanOut delivers msg to every other connection sharing the sender's
// channel (spec §4.6 fan-out semantics).
func (r *Router) fanOut(senderID string, msg Message) {
	for _, peer := range r.reg.Peers(senderID) {
		r.sender.Send(peer.ID, msg)
	}
}

// broadcastAdmin synthesizes an administrative event and sends it to
// every current peer in channelID, including the connection that just
// triggered it.
func (r *Router) broadcastAdmin(triggeredBy, channelID, eventType string) {
	peers := r.reg.Peers(triggeredBy)
	msg := Message{Type: eventType, ChannelID: channelID}
	for _, p := range peers {
		r.sender.Send(p.ID, msg)
	}
	r.sender.Send(triggeredBy, msg)
}

// Unregister marks a connection CLOSED, removes it from the registry, and
// notifies its remaining peer (spec §5 "Failure isolation"). When the last
// connection leaves a paired channel, the pairing record is closed too.
func (r *Router) Unregister(clientID string) {
	var channelID string
	if sess, ok := r.sessionFor(clientID); ok {
		channelID = sess.conn.ChannelID()
	}
	peers := r.reg.Peers(clientID)
	r.reg.Unregister(clientID)
	if channelID != "" && len(peers) == 0 {
		if rec, ok := r.pairing.Lookup(channelID); ok && rec.State == pairing.StatePaired {
			r.pairing.Close(channelID)
		}
	}

	r.mu.Lock()
	if sess, ok := r.sessions[clientID]; ok {
		sess.mu.Lock()
		sess.state = StateClosed
		sess.mu.Unlock()
	}
	delete(r.sessions, clientID)
	r.mu.Unlock()

	for _, p := range peers {
		r.sender.Send(p.ID, Message{Type: "peer_disconnected"})
	}
}

func (r *Router) closeConnection(clientID string) {
	r.sender.Close(clientID)
	r.Unregister(clientID)
}

func (r *Router) sendError(clientID, code string) {
	r.sender.Send(clientID, Message{Type: "error", Code: code})
}

func errorCode(err error) string {
	switch err {
	case kinds.ErrInvalidCode:
		return "INVALID_CODE"
	case kinds.ErrCodeExpired:
		return "CODE_EXPIRED"
	case kinds.ErrAlreadyPaired:
		return "ALREADY_PAIRED"
	case kinds.ErrChannelFull:
		return "CHANNEL_FULL"
	case kinds.ErrInvalidChannel:
		return "INVALID_CHANNEL"
	default:
		return "INTERNAL"
	}
}
