package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/classline/classline/internal/core"
	"github.com/classline/classline/internal/domain"
	"github.com/classline/classline/internal/media"
)

func newTestRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	issuer := media.NewIssuer("test-secret", time.Hour, nil, nil)
	return NewRegistry(issuer, opts)
}

func mustCreate(t *testing.T, r *Registry, title string, max int) domain.Session {
	t.Helper()
	s, err := r.Create(title, "owner1", "Owner", max, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func mustJoin(t *testing.T, r *Registry, id domain.SessionID, uid domain.UserID) (domain.Session, domain.Participant) {
	t.Helper()
	s, p, _, err := r.Join(id, uid, string(uid), domain.RoleStudent)
	if err != nil {
		t.Fatalf("Join %s: %v", uid, err)
	}
	return s, p
}

func TestCreateValidation(t *testing.T) {
	r := newTestRegistry(t, Options{})
	cases := []struct {
		name    string
		title   string
		ownerID domain.UserID
		max     int
	}{
		{"empty title", "", "u1", 5},
		{"blank title", "   ", "u1", 5},
		{"empty owner", "Math", "", 5},
		{"zero capacity", "Math", "u1", 0},
		{"negative capacity", "Math", "u1", -3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Create(tc.title, tc.ownerID, "Owner", tc.max, nil)
			if !errors.Is(err, core.ErrValidation) {
				t.Fatalf("got %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateDerivesRoomKey(t *testing.T) {
	r := newTestRegistry(t, Options{})
	s := mustCreate(t, r, "Math", 5)
	if s.RoomKey != domain.DeriveRoomKey(s.ID) {
		t.Fatalf("room key %q not derived from id", s.RoomKey)
	}
	if s.Status != domain.StatusWaiting {
		t.Fatalf("status: got %s, want waiting", s.Status)
	}
	if s.CreatedAt.IsZero() {
		t.Fatal("createdAt not set")
	}
}

func TestJoinCapacity(t *testing.T) {
	r := newTestRegistry(t, Options{})
	s := mustCreate(t, r, "Math", 2)

	snap, _ := mustJoin(t, r, s.ID, "u1")
	if snap.Status != domain.StatusLive {
		t.Fatalf("status after first join: got %s, want live", snap.Status)
	}
	if snap.StartedAt == nil {
		t.Fatal("startedAt not set on first join")
	}
	if len(snap.Participants) != 1 {
		t.Fatalf("participants: got %d, want 1", len(snap.Participants))
	}

	snap, _ = mustJoin(t, r, s.ID, "u2")
	if len(snap.Participants) != 2 {
		t.Fatalf("participants: got %d, want 2", len(snap.Participants))
	}

	_, _, _, err := r.Join(s.ID, "u3", "u3", domain.RoleStudent)
	if !errors.Is(err, core.ErrCapacity) {
		t.Fatalf("got %v, want ErrCapacity", err)
	}
	got, err := r.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Participants) != 2 {
		t.Fatalf("roster changed on rejected join: got %d, want 2", len(got.Participants))
	}
}

func TestJoinIdempotent(t *testing.T) {
	r := newTestRegistry(t, Options{})
	s := mustCreate(t, r, "Math", 3)

	_, p1 := mustJoin(t, r, s.ID, "u1")
	snap, p2 := mustJoin(t, r, s.ID, "u1")

	if len(snap.Participants) != 1 {
		t.Fatalf("participants after rejoin: got %d, want 1", len(snap.Participants))
	}
	if !p1.JoinedAt.Equal(p2.JoinedAt) {
		t.Fatalf("rejoin returned a different entry: %v vs %v", p1.JoinedAt, p2.JoinedAt)
	}
}

func TestJoinFullSessionAsExistingMember(t *testing.T) {
	r := newTestRegistry(t, Options{})
	s := mustCreate(t, r, "Math", 1)
	mustJoin(t, r, s.ID, "u1")
	// full roster, but u1 is already in: rejoin must not hit the cap
	if _, _, _, err := r.Join(s.ID, "u1", "u1", domain.RoleStudent); err != nil {
		t.Fatalf("rejoin on full session: %v", err)
	}
}

func TestJoinUnknownSession(t *testing.T) {
	r := newTestRegistry(t, Options{})
	_, _, _, err := r.Join("nope", "u1", "u1", domain.RoleStudent)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestJoinIssuesCredential(t *testing.T) {
	r := newTestRegistry(t, Options{})
	s := mustCreate(t, r, "Math", 2)
	_, _, cred, err := r.Join(s.ID, "u1", "u1", domain.RoleStudent)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if cred.Username == "" || cred.Password == "" {
		t.Fatal("credential not issued")
	}
	if !cred.ExpiresAt.After(time.Now()) {
		t.Fatalf("credential already expired: %v", cred.ExpiresAt)
	}
}

func TestJoinWithoutMediaSecret(t *testing.T) {
	r := NewRegistry(media.NewIssuer("", 0, nil, nil), Options{})
	s := mustCreate(t, r, "Math", 2)
	// feature-level degradation: the join stands, the credential is empty
	snap, _, cred, err := r.Join(s.ID, "u1", "u1", domain.RoleStudent)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if cred.Username != "" {
		t.Fatal("expected empty credential without a media secret")
	}
	if len(snap.Participants) != 1 {
		t.Fatal("roster mutation should stand")
	}
}

func TestLeaveIdempotent(t *testing.T) {
	r := newTestRegistry(t, Options{KeepAlive: true})
	s := mustCreate(t, r, "Math", 2)
	mustJoin(t, r, s.ID, "u1")

	if _, err := r.Leave(s.ID, "ghost"); err != nil {
		t.Fatalf("leave of absent user should be a no-op: %v", err)
	}
	if _, err := r.Leave(s.ID, "u1"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if _, err := r.Leave(s.ID, "u1"); err != nil {
		t.Fatalf("duplicate leave should be a no-op: %v", err)
	}
}

func TestTerminalState(t *testing.T) {
	r := newTestRegistry(t, Options{})
	s := mustCreate(t, r, "Math", 2)
	mustJoin(t, r, s.ID, "u1")

	if _, err := r.End(s.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	// idempotent
	if _, err := r.End(s.ID); err != nil {
		t.Fatalf("second End: %v", err)
	}

	if _, _, _, err := r.Join(s.ID, "u2", "u2", domain.RoleStudent); !errors.Is(err, core.ErrSessionEnded) {
		t.Fatalf("Join after End: got %v, want ErrSessionEnded", err)
	}
	if _, err := r.Leave(s.ID, "u1"); !errors.Is(err, core.ErrSessionEnded) {
		t.Fatalf("Leave after End: got %v, want ErrSessionEnded", err)
	}
	if _, err := r.ToggleRecording(s.ID, "u1", RecordingStart); !errors.Is(err, core.ErrSessionEnded) {
		t.Fatalf("ToggleRecording after End: got %v, want ErrSessionEnded", err)
	}
	if _, err := r.UpdateSettings(s.ID, domain.Settings{"chat": false}); !errors.Is(err, core.ErrSessionEnded) {
		t.Fatalf("UpdateSettings after End: got %v, want ErrSessionEnded", err)
	}
	if _, err := r.Get(s.ID); !errors.Is(err, core.ErrSessionEnded) {
		t.Fatalf("Get after End: got %v, want ErrSessionEnded", err)
	}
}

func TestEndClearsRoster(t *testing.T) {
	r := newTestRegistry(t, Options{})
	s := mustCreate(t, r, "Math", 3)
	mustJoin(t, r, s.ID, "u1")
	mustJoin(t, r, s.ID, "u2")

	snap, err := r.End(s.ID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if len(snap.Participants) != 0 {
		t.Fatalf("roster after End: got %d, want 0", len(snap.Participants))
	}
	if snap.EndedAt == nil {
		t.Fatal("endedAt not set")
	}
}

func TestAutoCloseAfterGrace(t *testing.T) {
	r := newTestRegistry(t, Options{CloseGrace: 20 * time.Millisecond})
	s := mustCreate(t, r, "Math", 1)
	mustJoin(t, r, s.ID, "u1")

	snap, err := r.Leave(s.ID, "u1")
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if snap.Status != domain.StatusLive {
		t.Fatalf("status right after leave: got %s, want live", snap.Status)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := r.Get(s.ID); errors.Is(err, core.ErrSessionEnded) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("session never auto-closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRejoinCancelsAutoClose(t *testing.T) {
	r := newTestRegistry(t, Options{CloseGrace: 50 * time.Millisecond})
	s := mustCreate(t, r, "Math", 1)
	mustJoin(t, r, s.ID, "u1")
	if _, err := r.Leave(s.ID, "u1"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	mustJoin(t, r, s.ID, "u1")

	time.Sleep(150 * time.Millisecond)
	snap, err := r.Get(s.ID)
	if err != nil {
		t.Fatalf("Get after rejoin: %v", err)
	}
	if snap.Status != domain.StatusLive {
		t.Fatalf("status: got %s, want live", snap.Status)
	}
}

func TestKeepAliveDisablesAutoClose(t *testing.T) {
	r := newTestRegistry(t, Options{CloseGrace: 10 * time.Millisecond, KeepAlive: true})
	s := mustCreate(t, r, "Math", 1)
	mustJoin(t, r, s.ID, "u1")
	if _, err := r.Leave(s.ID, "u1"); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if _, err := r.Get(s.ID); err != nil {
		t.Fatalf("keep-alive session closed anyway: %v", err)
	}
}

func TestEmptyWaitingSessionStaysOpen(t *testing.T) {
	r := newTestRegistry(t, Options{CloseGrace: 10 * time.Millisecond})
	s := mustCreate(t, r, "Math", 1)
	// never joined, so the empty-roster rule must not apply
	time.Sleep(50 * time.Millisecond)
	if _, err := r.Get(s.ID); err != nil {
		t.Fatalf("waiting session closed without ever being joined: %v", err)
	}
}

func TestToggleRecording(t *testing.T) {
	r := newTestRegistry(t, Options{})
	s := mustCreate(t, r, "Math", 2)
	mustJoin(t, r, s.ID, "u1")

	snap, err := r.ToggleRecording(s.ID, "u1", RecordingStart)
	if err != nil {
		t.Fatalf("ToggleRecording start: %v", err)
	}
	if !snap.IsRecording || snap.RecordingStartedAt == nil {
		t.Fatal("recording not started")
	}
	p, _ := snap.Participant("u1")
	if !p.IsRecording {
		t.Fatal("participant recording flag not set")
	}

	// idempotent: starting again keeps the original timestamp
	started := *snap.RecordingStartedAt
	snap, err = r.ToggleRecording(s.ID, "u1", RecordingStart)
	if err != nil {
		t.Fatalf("repeat start: %v", err)
	}
	if !snap.RecordingStartedAt.Equal(started) {
		t.Fatal("repeat start moved the timestamp")
	}

	// non-member cannot touch recording and state stays put
	if _, err := r.ToggleRecording(s.ID, "outsider", RecordingStop); !errors.Is(err, core.ErrNotInSession) {
		t.Fatalf("got %v, want ErrNotInSession", err)
	}
	got, _ := r.Get(s.ID)
	if !got.IsRecording {
		t.Fatal("state changed on rejected toggle")
	}

	snap, err = r.ToggleRecording(s.ID, "u1", RecordingStop)
	if err != nil {
		t.Fatalf("ToggleRecording stop: %v", err)
	}
	if snap.IsRecording || snap.RecordingEndedAt == nil {
		t.Fatal("recording not stopped")
	}
}

func TestToggleRecordingBadAction(t *testing.T) {
	r := newTestRegistry(t, Options{})
	s := mustCreate(t, r, "Math", 2)
	mustJoin(t, r, s.ID, "u1")
	if _, err := r.ToggleRecording(s.ID, "u1", "pause"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
}

func TestUpdateSettingsPreservesUnknownKeys(t *testing.T) {
	r := newTestRegistry(t, Options{})
	s := mustCreate(t, r, "Math", 2)

	snap, err := r.UpdateSettings(s.ID, domain.Settings{
		domain.SettingChat: false,
		"laser_pointer":    true,
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if snap.Settings[domain.SettingChat] {
		t.Fatal("chat flag not overwritten")
	}
	if !snap.Settings["laser_pointer"] {
		t.Fatal("unknown key dropped instead of preserved")
	}
	if !snap.Settings[domain.SettingWhiteboard] {
		t.Fatal("untouched key lost")
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	r := newTestRegistry(t, Options{})
	s := mustCreate(t, r, "Math", 2)
	snap, _ := mustJoin(t, r, s.ID, "u1")

	snap.Participants[0].DisplayName = "tampered"
	snap.Settings[domain.SettingChat] = false

	got, err := r.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Participants[0].DisplayName == "tampered" {
		t.Fatal("registry state reachable through snapshot roster")
	}
	if !got.Settings[domain.SettingChat] {
		t.Fatal("registry state reachable through snapshot settings")
	}
}

func TestListExcludesEnded(t *testing.T) {
	r := newTestRegistry(t, Options{})
	a := mustCreate(t, r, "Math", 2)
	b := mustCreate(t, r, "Physics", 2)
	if _, err := r.End(b.ID); err != nil {
		t.Fatalf("End: %v", err)
	}

	list := r.List()
	if len(list) != 1 {
		t.Fatalf("List: got %d sessions, want 1", len(list))
	}
	if list[0].ID != a.ID {
		t.Fatalf("List returned %s, want %s", list[0].ID, a.ID)
	}
}

func TestByRoomKey(t *testing.T) {
	r := newTestRegistry(t, Options{})
	s := mustCreate(t, r, "Math", 2)

	got, err := r.ByRoomKey(s.RoomKey)
	if err != nil {
		t.Fatalf("ByRoomKey: %v", err)
	}
	if got.ID != s.ID {
		t.Fatalf("ByRoomKey: got %s, want %s", got.ID, s.ID)
	}

	if _, err := r.End(s.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, err := r.ByRoomKey(s.RoomKey); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("ByRoomKey after end: got %v, want ErrNotFound", err)
	}
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	const max = 5
	const attempts = 40

	r := newTestRegistry(t, Options{})
	s := mustCreate(t, r, "Math", max)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var admitted, rejected int

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			uid := domain.UserID(rune('a'+n%26)) + domain.UserID(rune('a'+n/26))
			_, _, _, err := r.Join(s.ID, uid, string(uid), domain.RoleStudent)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, core.ErrCapacity):
				rejected++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	snap, err := r.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(snap.Participants) > max {
		t.Fatalf("capacity exceeded: %d > %d", len(snap.Participants), max)
	}
	if admitted != max {
		t.Fatalf("admitted: got %d, want %d", admitted, max)
	}
	if admitted+rejected != attempts {
		t.Fatalf("admitted+rejected: got %d, want %d", admitted+rejected, attempts)
	}
}
