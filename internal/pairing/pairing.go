// Package pairing implements the in-memory pairing-code store that lets a
// desktop session hand a mobile device a short code to join its channel
// (spec §4.4).
package pairing

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"dentalgw/internal/kinds"
	"dentalgw/internal/logging"
)

// State is a pairing record's lifecycle stage.
type State string

const (
	StatePending State = "PENDING"
	StatePaired  State = "PAIRED"
	StateExpired State = "EXPIRED"
	StateClosed  State = "CLOSED"
)

// Record is one pairing code and the channel it admits into.
type Record struct {
	mu sync.Mutex

	Code           string
	ChannelID      string
	DesktopSession string
	MobileSession  string
	State          State
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

func (r *Record) snapshot() Record {
	return Record{
		Code:           r.Code,
		ChannelID:      r.ChannelID,
		DesktopSession: r.DesktopSession,
		MobileSession:  r.MobileSession,
		State:          r.State,
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
	}
}

// maxCollisionAttempts bounds how many times Create retries a colliding
// code before giving up (spec §4.4).
const maxCollisionAttempts = 10

// defaultTTL is the code lifetime NewStore uses when given a ttl <= 0.
const defaultTTL = 5 * time.Minute

// Store is the map-with-per-entry-lock pairing registry: the global map
// uses a short critical section only to insert/remove/look up a *Record;
// all record mutation happens under that record's own mutex, matching the
// teacher's session.Manager concurrency shape.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record // code -> record
	byChan  map[string]*Record // channel_id -> record
	ttl     time.Duration
	log     *logging.Logger
}

// NewStore builds an empty Store with the given code TTL (0 uses the
// spec default of 5 minutes).
func NewStore(ttl time.Duration, log *logging.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{
		records: make(map[string]*Record),
		byChan:  make(map[string]*Record),
		ttl:     ttl,
		log:     log,
	}
}

// Create samples a fresh 6-digit code for desktopSessionID, retrying on
// collision up to maxCollisionAttempts times.
func (s *Store) Create(ctx context.Context, desktopSessionID string) (Record, error) {
	for attempt := 0; attempt < maxCollisionAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return Record{}, fmt.Errorf("pairing: generating code: %w", err)
		}

		s.mu.Lock()
		if _, exists := s.records[code]; exists {
			s.mu.Unlock()
			continue
		}
		now := time.Now()
		rec := &Record{
			Code:           code,
			ChannelID:      "pair-" + code,
			DesktopSession: desktopSessionID,
			State:          StatePending,
			CreatedAt:      now,
			ExpiresAt:      now.Add(s.ttl),
		}
		s.records[code] = rec
		s.byChan[rec.ChannelID] = rec
		s.mu.Unlock()

		if s.log != nil {
			s.log.With("channel_id", rec.ChannelID, "expires_at", rec.ExpiresAt).Info("pairing code generated")
		}
		return rec.snapshot(), nil
	}
	return Record{}, fmt.Errorf("pairing: %w after %d attempts", kinds.ErrInternal, maxCollisionAttempts)
}

// Claim transitions a PENDING record to PAIRED for mobileSessionID.
func (s *Store) Claim(ctx context.Context, code, mobileSessionID string) (Record, error) {
	s.mu.RLock()
	rec, ok := s.records[code]
	s.mu.RUnlock()
	if !ok {
		return Record{}, kinds.ErrInvalidCode
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	switch {
	case rec.State == StatePaired:
		return Record{}, kinds.ErrAlreadyPaired
	case rec.State != StatePending:
		return Record{}, kinds.ErrInvalidCode
	case time.Now().After(rec.ExpiresAt):
		rec.State = StateExpired
		return Record{}, kinds.ErrCodeExpired
	}

	rec.MobileSession = mobileSessionID
	rec.State = StatePaired
	return rec.snapshot(), nil
}

// Lookup returns the record for channelID, if any.
func (s *Store) Lookup(channelID string) (Record, bool) {
	s.mu.RLock()
	rec, ok := s.byChan[channelID]
	s.mu.RUnlock()
	if !ok {
		return Record{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.snapshot(), true
}

// Close marks channelID's record CLOSED and removes it, called once both
// peers have left the channel (spec §4.1 data model).
func (s *Store) Close(channelID string) {
	s.mu.Lock()
	rec, ok := s.byChan[channelID]
	if ok {
		delete(s.byChan, channelID)
		delete(s.records, rec.Code)
	}
	s.mu.Unlock()
	if ok {
		rec.mu.Lock()
		rec.State = StateClosed
		rec.mu.Unlock()
	}
}

// Sweep removes every record past its ExpiresAt that never reached
// PAIRED, per spec §4.4.
func (s *Store) Sweep() int {
	now := time.Now()
	var expired []string

	s.mu.RLock()
	for code, rec := range s.records {
		rec.mu.Lock()
		if rec.State != StatePaired && now.After(rec.ExpiresAt) {
			expired = append(expired, code)
		}
		rec.mu.Unlock()
	}
	s.mu.RUnlock()

	if len(expired) == 0 {
		return 0
	}

	s.mu.Lock()
	for _, code := range expired {
		if rec, ok := s.records[code]; ok {
			rec.mu.Lock()
			rec.State = StateExpired
			rec.mu.Unlock()
			delete(s.records, code)
			delete(s.byChan, rec.ChannelID)
		}
	}
	s.mu.Unlock()

	if s.log != nil {
		s.log.With("count", len(expired)).Info("pairing codes expired")
	}
	return len(expired)
}

// RunSweeper runs Sweep on interval until ctx is canceled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func randomCode() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	n := (uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])) % 1000000
	return fmt.Sprintf("%06d", n), nil
}
