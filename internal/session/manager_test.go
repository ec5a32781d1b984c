package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/agenti/agenti-web/internal/controller"
)

func newTestManager() *Manager {
	return NewManager(Options{
		Converter:  controller.MockConverter{Delay: 10 * time.Millisecond},
		Uploader:   controller.MockUploader{Delay: 10 * time.Millisecond},
		Policy:     controller.DefaultPolicy(),
		ResetDelay: 10 * time.Millisecond,
	})
}

func TestManager_OpenGetClose(t *testing.T) {
	m := newTestManager()
	defer m.CloseAll()

	s := m.Open("anon_1", 10)
	if s.ID == "" {
		t.Fatal("expected session id")
	}

	got, ok := m.Get(s.ID)
	if !ok || got != s {
		t.Fatalf("expected to find session %s", s.ID)
	}

	m.Close(s.ID)
	if _, ok := m.Get(s.ID); ok {
		t.Fatal("expected session to be removed")
	}
	// Closing twice is a no-op.
	m.Close(s.ID)
}

func TestManager_CloseCancelsPendingRun(t *testing.T) {
	m := newTestManager()
	s := m.Open("user", 10)

	s.Run.Submit("print(1)")
	m.Close(s.ID)
	time.Sleep(30 * time.Millisecond)

	if st := s.Run.State(); st.Output != "" {
		t.Fatalf("closed session received output: %+v", st)
	}
}

func TestManager_ExpiredSkipsSubscribedSessions(t *testing.T) {
	m := newTestManager()
	defer m.CloseAll()

	idle := m.Open("user", 0)
	watched := m.Open("user", 0)
	_, cancel := watched.Hub.Subscribe()
	defer cancel()

	time.Sleep(5 * time.Millisecond)
	expired := m.Expired(time.Millisecond)
	if len(expired) != 1 || expired[0].ID != idle.ID {
		t.Fatalf("expected only the idle session to expire, got %d", len(expired))
	}

	if n := sweep(m, time.Millisecond); n != 1 {
		t.Fatalf("expected sweep to close 1 session, got %d", n)
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 open session, got %d", m.Len())
	}
}

func TestManager_TouchDefersExpiry(t *testing.T) {
	m := newTestManager()
	defer m.CloseAll()

	s := m.Open("user", 0)
	time.Sleep(20 * time.Millisecond)
	s.Touch()
	if len(m.Expired(10*time.Millisecond)) != 0 {
		t.Fatal("touched session must not expire")
	}
}

func TestSweeperStopsWithContext(t *testing.T) {
	m := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())

	m.Open("user", 0)
	StartSweeper(ctx, m, time.Millisecond, 5*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for m.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if m.Len() != 0 {
		t.Fatal("expected sweeper to close the idle session")
	}
}

func TestSessionPublishesControllerUpdates(t *testing.T) {
	m := newTestManager()
	defer m.CloseAll()

	s := m.Open("user", 10)
	updates, cancel := s.Hub.Subscribe()
	defer cancel()

	s.Run.Submit("print(1)")

	deadline := time.After(time.Second)
	for {
		select {
		case msg := <-updates:
			if msg.Type == MessageRun && msg.Run.Status == controller.RunDone {
				if msg.Run.Output != controller.CannedOutput {
					t.Fatal("unexpected output in update")
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for run update")
		}
	}
}

func TestHubClipboardNeedsSubscriber(t *testing.T) {
	h := NewHub("s1")
	if err := h.WriteText(context.Background(), "copied"); !errors.Is(err, ErrNoSubscriber) {
		t.Fatalf("expected ErrNoSubscriber, got %v", err)
	}

	_, cancel := h.Subscribe()
	cancel()
	if err := h.WriteText(context.Background(), "copied"); !errors.Is(err, ErrNoSubscriber) {
		t.Fatalf("expected ErrNoSubscriber after unsubscribe, got %v", err)
	}
}

func TestHubClipboardAndClose(t *testing.T) {
	h := NewHub("s1")
	updates, cancel := h.Subscribe()
	defer cancel()

	if err := h.WriteText(context.Background(), "copied"); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	msg := <-updates
	if msg.Type != MessageClipboard || msg.Text != "copied" {
		t.Fatalf("unexpected message %+v", msg)
	}

	h.Close()
	msg, ok := <-updates
	if !ok || msg.Type != MessageClosed {
		t.Fatalf("expected closed message, got %+v ok=%v", msg, ok)
	}
	if _, ok := <-updates; ok {
		t.Fatal("expected channel to be closed")
	}

	late, _ := h.Subscribe()
	if _, ok := <-late; ok {
		t.Fatal("expected subscription after close to be closed")
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := newTestManager()
	defer m.CloseAll()

	var wg sync.WaitGroup
	ids := make(chan string, 100)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			ids <- m.Open("user-"+strconv.Itoa(i%3), 0).ID
		}
		close(ids)
	}()
	go func() {
		defer wg.Done()
		for id := range ids {
			if _, ok := m.Get(id); !ok {
				t.Errorf("session %s not found", id)
			}
		}
	}()
	wg.Wait()

	if m.Len() != 100 {
		t.Fatalf("expected 100 sessions, got %d", m.Len())
	}
}
