// Package registry tracks live WebSocket connections and the channels
// they've joined (spec §4.5). It never touches the wire itself — callers
// hand it an opaque *Conn and get back the peers to fan out to.
package registry

import (
	"sync"

	"dentalgw/internal/kinds"
)

// DeviceType distinguishes the two admissible device roles.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
)

// Conn is one registered connection. Underlying carries whatever the
// transport layer needs to actually write to the socket (e.g. a
// *websocket.Conn) — the registry only cares about identity and channel
// membership.
type Conn struct {
	ID         string
	DeviceType DeviceType
	SessionID  string
	Underlying any

	mu        sync.Mutex
	channelID string
}

func (c *Conn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

// channel holds the at-most-one-desktop, at-most-one-mobile membership
// invariant for a single channel_id (spec §4.1 data model).
type channel struct {
	mu      sync.Mutex
	desktop *Conn
	mobile  *Conn
}

func (ch *channel) memberCount() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	n := 0
	if ch.desktop != nil {
		n++
	}
	if ch.mobile != nil {
		n++
	}
	return n
}

// Registry is the connection registry: client_id -> Conn, and
// channel_id -> channel membership.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*Conn
	channels map[string]*channel
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		conns:    make(map[string]*Conn),
		channels: make(map[string]*channel),
	}
}

// Register adds conn under its ID. It does not join a channel.
func (r *Registry) Register(conn *Conn) {
	r.mu.Lock()
	r.conns[conn.ID] = conn
	r.mu.Unlock()
}

// Lookup a connection is not required by the API here; use Conn itself by
// keeping a reference at registration time, and Join/Peers/Unregister by
// client_id.

// Join admits clientID's connection into channelID, refusing a second
// connection of the same device type and refusing if the channel has no
// existing record (spec §4.5, requires a prior pairing-store lookup by
// the caller to populate "has no record" — Join only checks membership).
func (r *Registry) Join(clientID, channelID string) error {
	r.mu.RLock()
	conn, ok := r.conns[clientID]
	r.mu.RUnlock()
	if !ok {
		return kinds.ErrInvalidChannel
	}

	r.mu.Lock()
	ch, exists := r.channels[channelID]
	if !exists {
		ch = &channel{}
		r.channels[channelID] = ch
	}
	r.mu.Unlock()

	ch.mu.Lock()
	defer ch.mu.Unlock()

	switch conn.DeviceType {
	case DeviceDesktop:
		if ch.desktop != nil && ch.desktop.ID != clientID {
			return kinds.ErrChannelFull
		}
		ch.desktop = conn
	case DeviceMobile:
		if ch.mobile != nil && ch.mobile.ID != clientID {
			return kinds.ErrChannelFull
		}
		ch.mobile = conn
	default:
		return kinds.ErrInvalidChannel
	}

	conn.mu.Lock()
	conn.channelID = channelID
	conn.mu.Unlock()
	return nil
}

// Peers returns every other connection sharing clientID's channel.
func (r *Registry) Peers(clientID string) []*Conn {
	r.mu.RLock()
	conn, ok := r.conns[clientID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	channelID := conn.ChannelID()
	if channelID == "" {
		return nil
	}

	r.mu.RLock()
	ch, ok := r.channels[channelID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	var peers []*Conn
	if ch.desktop != nil && ch.desktop.ID != clientID {
		peers = append(peers, ch.desktop)
	}
	if ch.mobile != nil && ch.mobile.ID != clientID {
		peers = append(peers, ch.mobile)
	}
	return peers
}

// Unregister removes clientID entirely: from its channel (deleting the
// channel if it becomes empty) and from the connection map.
func (r *Registry) Unregister(clientID string) {
	r.mu.RLock()
	conn, ok := r.conns[clientID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	channelID := conn.ChannelID()

	if channelID != "" {
		r.mu.RLock()
		ch, exists := r.channels[channelID]
		r.mu.RUnlock()
		if exists {
			ch.mu.Lock()
			if ch.desktop != nil && ch.desktop.ID == clientID {
				ch.desktop = nil
			}
			if ch.mobile != nil && ch.mobile.ID == clientID {
				ch.mobile = nil
			}
			ch.mu.Unlock()

			if ch.memberCount() == 0 {
				r.mu.Lock()
				delete(r.channels, channelID)
				r.mu.Unlock()
			}
		}
	}

	r.mu.Lock()
	delete(r.conns, clientID)
	r.mu.Unlock()
}
