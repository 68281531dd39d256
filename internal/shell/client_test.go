package shell

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/weatherdesk/internal/auth"
	"github.com/hitoshi/weatherdesk/internal/model"
	"github.com/hitoshi/weatherdesk/internal/session"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Provider: &mockProvider{}})
	defer reg.Close()

	c := reg.Create(context.Background())
	if c.ID == "" {
		t.Fatal("client ID should be set")
	}
	if !c.Manager.Running() {
		t.Error("session manager should be started")
	}
	if c.View().Mode != ModeSignIn {
		t.Errorf("initial Mode = %q, want signin", c.View().Mode)
	}

	got, ok := reg.Get(c.ID)
	if !ok || got != c {
		t.Errorf("Get(%q) = %v, %v", c.ID, got, ok)
	}
	if _, ok := reg.Get("unknown"); ok {
		t.Error("Get(unknown) should not find a client")
	}
}

func TestRegistry_ClientsAreIsolated(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Provider: &mockProvider{}})
	defer reg.Close()

	a := reg.Create(context.Background())
	b := reg.Create(context.Background())

	if _, err := a.Gateway.SignIn(context.Background(), "alice@example.com", "secret1"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if a.Session() == nil {
		t.Error("client a should be signed in")
	}
	if b.Session() != nil {
		t.Error("client b should not see client a's session")
	}
}

func TestRegistry_HooksRunPerClient(t *testing.T) {
	var mu sync.Mutex
	var events []auth.Event
	hook := func(_ context.Context, event auth.Event, _ *model.Session) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
	}
	reg := NewRegistry(RegistryConfig{Provider: &mockProvider{}, Hooks: []session.Hook{hook}})
	defer reg.Close()

	c := reg.Create(context.Background())
	if _, err := c.Gateway.SignIn(context.Background(), "alice@example.com", "secret1"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0] != auth.EventInitialSession || events[1] != auth.EventSignedIn {
		t.Errorf("events = %v, want [INITIAL_SESSION SIGNED_IN]", events)
	}
}

func TestRegistry_Sweep(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Provider: &mockProvider{}, IdleTimeout: time.Hour})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	stale := reg.Create(context.Background())
	now = now.Add(30 * time.Minute)
	fresh := reg.Create(context.Background())
	now = now.Add(45 * time.Minute)

	if n := reg.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	if _, ok := reg.Get(stale.ID); ok {
		t.Error("stale client should be removed")
	}
	if stale.Manager.Running() {
		t.Error("stale client's manager should be stopped")
	}
	if _, ok := reg.Get(fresh.ID); !ok {
		t.Error("fresh client should be kept")
	}

	// Getで最終アクセス時刻が更新される
	now = now.Add(50 * time.Minute)
	if n := reg.Sweep(); n != 0 {
		t.Errorf("Sweep() = %d, want 0 after Get refreshed the client", n)
	}
}

func TestRegistry_GetDuringSweep(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Provider: &mockProvider{}, IdleTimeout: time.Hour})
	defer reg.Close()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	reg.now = func() time.Time { return now }

	for i := 0; i < 200; i++ {
		now = base
		c := reg.Create(context.Background())
		now = base.Add(2 * time.Hour)

		var (
			wg  sync.WaitGroup
			got bool
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, got = reg.Get(c.ID)
		}()
		go func() {
			defer wg.Done()
			reg.Sweep()
		}()
		wg.Wait()

		// Getが返したClientは破棄されていない
		if got && !c.Manager.Running() {
			t.Fatalf("iteration %d: Get returned a client that Sweep stopped", i)
		}
		base = now
	}
}

func TestRegistry_StartSweeper(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Provider: &mockProvider{}, IdleTimeout: time.Millisecond})
	reg.Create(context.Background())
	time.Sleep(5 * time.Millisecond)

	s, err := reg.StartSweeper(time.Hour)
	if err != nil {
		t.Fatalf("StartSweeper() error = %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for reg.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after the first sweep", reg.Len())
	}
}

func TestRegistry_Close(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Provider: &mockProvider{}})
	c := reg.Create(context.Background())

	reg.Close()

	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
	if c.Manager.Running() {
		t.Error("manager should be stopped")
	}
}
