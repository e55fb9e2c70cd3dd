package pairing

import (
	"context"
	"errors"
	"testing"
	"time"

	"dentalgw/internal/kinds"
)

func TestCreateProducesSixDigitCode(t *testing.T) {
	s := NewStore(5*time.Minute, nil)
	rec, err := s.Create(context.Background(), "desktop-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(rec.Code) != 6 {
		t.Errorf("expected a 6-digit code, got %q", rec.Code)
	}
	if rec.ChannelID != "pair-"+rec.Code {
		t.Errorf("expected channel id pair-%s, got %s", rec.Code, rec.ChannelID)
	}
	if rec.State != StatePending {
		t.Errorf("expected PENDING state, got %s", rec.State)
	}
}

func TestClaimTransitionsToPaired(t *testing.T) {
	s := NewStore(5*time.Minute, nil)
	rec, _ := s.Create(context.Background(), "desktop-1")

	paired, err := s.Claim(context.Background(), rec.Code, "mobile-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if paired.State != StatePaired {
		t.Errorf("expected PAIRED, got %s", paired.State)
	}

	if _, err := s.Claim(context.Background(), rec.Code, "mobile-2"); !errors.Is(err, kinds.ErrAlreadyPaired) {
		t.Errorf("expected ALREADY_PAIRED on second claim, got %v", err)
	}
}

func TestClaimUnknownCodeIsInvalid(t *testing.T) {
	s := NewStore(5*time.Minute, nil)
	if _, err := s.Claim(context.Background(), "000000", "mobile-1"); !errors.Is(err, kinds.ErrInvalidCode) {
		t.Errorf("expected INVALID_CODE, got %v", err)
	}
}

func TestClaimAfterExpiryIsExpired(t *testing.T) {
	s := NewStore(1*time.Millisecond, nil)
	rec, _ := s.Create(context.Background(), "desktop-1")
	time.Sleep(5 * time.Millisecond)

	if _, err := s.Claim(context.Background(), rec.Code, "mobile-1"); !errors.Is(err, kinds.ErrCodeExpired) {
		t.Errorf("expected CODE_EXPIRED, got %v", err)
	}
}

func TestSweepRemovesOnlyExpiredPending(t *testing.T) {
	s := NewStore(1*time.Millisecond, nil)
	stale, _ := s.Create(context.Background(), "desktop-1")
	time.Sleep(5 * time.Millisecond)

	fresh := s.mustCreateWithTTL(t, "desktop-2", time.Hour)

	n := s.Sweep()
	if n != 1 {
		t.Fatalf("expected 1 swept record, got %d", n)
	}
	if _, ok := s.Lookup(stale.ChannelID); ok {
		t.Error("expected stale record to be gone after sweep")
	}
	if _, ok := s.Lookup(fresh.ChannelID); !ok {
		t.Error("expected fresh record to survive sweep")
	}
}

// mustCreateWithTTL creates a record in this Store with ttl swapped in
// for the duration of the call, keeping the sweep test's two records
// independently timed.
func (s *Store) mustCreateWithTTL(t *testing.T, desktopSessionID string, ttl time.Duration) Record {
	t.Helper()
	saved := s.ttl
	s.ttl = ttl
	defer func() { s.ttl = saved }()
	rec, err := s.Create(context.Background(), desktopSessionID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return rec
}

func TestCloseRemovesRecord(t *testing.T) {
	s := NewStore(5*time.Minute, nil)
	rec, _ := s.Create(context.Background(), "desktop-1")
	s.Close(rec.ChannelID)
	if _, ok := s.Lookup(rec.ChannelID); ok {
		t.Error("expected record to be gone after Close")
	}
}
