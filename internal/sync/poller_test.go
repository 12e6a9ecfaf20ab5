package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/nhle/notify-engine/internal/identity"
	"github.com/nhle/notify-engine/internal/model"
)

// memStore is an in-memory StateStore recording loads and saves.
type memStore struct {
	mu    gosync.Mutex
	blobs map[string]*model.StoredState
	loads []string
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string]*model.StoredState)}
}

func (m *memStore) Load(ctx context.Context, userKey string) (*model.StoredState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads = append(m.loads, userKey)
	return m.blobs[userKey], nil
}

func (m *memStore) Save(ctx context.Context, userKey string, state *model.StoredState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[userKey] = state
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) loadKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loads...)
}

func (m *memStore) stored(userKey string) *model.StoredState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobs[userKey]
}

// threadFeedFunc adapts a function to the ThreadFeed interface.
type threadFeedFunc func(ctx context.Context, credential string) ([]model.Thread, error)

func (f threadFeedFunc) FetchThreads(ctx context.Context, credential string) ([]model.Thread, error) {
	return f(ctx, credential)
}

// resourceFeedFunc adapts a function to the ResourceFeed interface.
type resourceFeedFunc func(ctx context.Context, credential string) ([]model.Resource, error)

func (f resourceFeedFunc) FetchResources(ctx context.Context, credential string) ([]model.Resource, error) {
	return f(ctx, credential)
}

func student(userID int64) *identity.Identity {
	return &identity.Identity{
		UserID:     userID,
		Role:       model.RoleStudent,
		Credential: "bearer-token",
	}
}

func emptyThreads(ctx context.Context, credential string) ([]model.Thread, error) {
	return nil, nil
}

func emptyResources(ctx context.Context, credential string) ([]model.Resource, error) {
	return nil, nil
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestSetIdentityPollsImmediately(t *testing.T) {
	threadCalled := make(chan struct{}, 16)
	resourceCalled := make(chan struct{}, 16)

	p := New(newMemStore(),
		threadFeedFunc(func(ctx context.Context, credential string) ([]model.Thread, error) {
			if credential != "bearer-token" {
				t.Errorf("credential = %q", credential)
			}
			threadCalled <- struct{}{}
			return nil, nil
		}),
		resourceFeedFunc(func(ctx context.Context, credential string) ([]model.Resource, error) {
			resourceCalled <- struct{}{}
			return nil, nil
		}),
		WithInterval(time.Hour),
	)
	defer p.Stop()

	p.SetIdentity(student(1))

	waitSignal(t, threadCalled, "thread fetch")
	waitSignal(t, resourceCalled, "resource fetch")

	if !p.Active() {
		t.Error("poller not active after SetIdentity")
	}
	if eng := p.Engine(); eng == nil || eng.UserID() != 1 {
		t.Error("active session engine missing or wrong user")
	}
}

func TestCredentiallessIdentityStaysInactive(t *testing.T) {
	p := New(newMemStore(), threadFeedFunc(emptyThreads), resourceFeedFunc(emptyResources))
	defer p.Stop()

	p.SetIdentity(&identity.Identity{UserID: 1, Role: model.RoleStudent})

	if p.Active() {
		t.Error("poller active without a credential")
	}
	if p.Engine() != nil {
		t.Error("engine exists without a credential")
	}
}

func TestNilIdentityDeactivates(t *testing.T) {
	p := New(newMemStore(), threadFeedFunc(emptyThreads), resourceFeedFunc(emptyResources),
		WithInterval(time.Hour))

	p.SetIdentity(student(1))
	p.SetIdentity(nil)

	if p.Active() {
		t.Error("poller still active after logout")
	}
}

func TestSameIdentityDoesNotRestartSession(t *testing.T) {
	st := newMemStore()
	p := New(st, threadFeedFunc(emptyThreads), resourceFeedFunc(emptyResources),
		WithInterval(time.Hour))
	defer p.Stop()

	p.SetIdentity(student(1))
	p.SetIdentity(student(1))

	if got := len(st.loadKeys()); got != 1 {
		t.Errorf("state loaded %d times, want 1", got)
	}
}

func TestUserSwitchLoadsDisjointState(t *testing.T) {
	st := newMemStore()
	p := New(st, threadFeedFunc(emptyThreads), resourceFeedFunc(emptyResources),
		WithInterval(time.Hour))
	defer p.Stop()

	p.SetIdentity(student(1))
	p.SetIdentity(student(2))

	keys := st.loadKeys()
	if len(keys) != 2 || keys[0] != model.StorageKey(1) || keys[1] != model.StorageKey(2) {
		t.Errorf("load keys = %v", keys)
	}
	if eng := p.Engine(); eng == nil || eng.UserID() != 2 {
		t.Error("active engine does not belong to the new user")
	}
}

func TestRoleFeedEntitlements(t *testing.T) {
	threadCalled := make(chan struct{}, 16)
	resourceCalls := 0
	var mu gosync.Mutex

	p := New(newMemStore(),
		threadFeedFunc(func(ctx context.Context, credential string) ([]model.Thread, error) {
			threadCalled <- struct{}{}
			return nil, nil
		}),
		resourceFeedFunc(func(ctx context.Context, credential string) ([]model.Resource, error) {
			mu.Lock()
			resourceCalls++
			mu.Unlock()
			return nil, nil
		}),
		WithInterval(time.Hour),
	)
	defer p.Stop()

	// Finance sees the thread feed but not the resource feed.
	p.SetIdentity(&identity.Identity{
		UserID: 3, Role: model.RoleFinance, Credential: "bearer-token",
	})
	waitSignal(t, threadCalled, "thread fetch")
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	if resourceCalls != 0 {
		t.Errorf("resource feed fetched %d times for finance role, want 0", resourceCalls)
	}
}

func TestFeedFailureDoesNotBlockOtherFeed(t *testing.T) {
	var mu gosync.Mutex
	resources := []model.Resource{{ID: 5, Title: "seed", Kind: "document"}}
	resourceCalled := make(chan struct{}, 16)

	p := New(newMemStore(),
		threadFeedFunc(func(ctx context.Context, credential string) ([]model.Thread, error) {
			return nil, errors.New("backend down")
		}),
		resourceFeedFunc(func(ctx context.Context, credential string) ([]model.Resource, error) {
			mu.Lock()
			defer mu.Unlock()
			resourceCalled <- struct{}{}
			return append([]model.Resource(nil), resources...), nil
		}),
		WithInterval(time.Hour),
	)
	defer p.Stop()

	p.SetIdentity(student(1))
	waitSignal(t, resourceCalled, "baseline resource fetch")

	mu.Lock()
	resources = append(resources, model.Resource{ID: 6, Title: "fresh", Kind: "audio"})
	mu.Unlock()

	p.Refresh()
	waitSignal(t, resourceCalled, "refresh resource fetch")

	deadline := time.Now().Add(2 * time.Second)
	for {
		eng := p.Engine()
		if eng == nil {
			t.Fatal("engine gone")
		}
		notes := eng.Notifications()
		if len(notes) == 1 && notes[0].ID == "resource-6" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("resource ingestion never happened despite thread feed failing: %+v", notes)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStopDiscardsInFlightResults(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	st := newMemStore()

	p := New(st,
		threadFeedFunc(func(ctx context.Context, credential string) ([]model.Thread, error) {
			close(started)
			// Ignore ctx on purpose: the result arrives after teardown.
			<-release
			return []model.Thread{{
				ID: 1,
				Messages: []model.Message{
					{ID: 10, AuthorID: 2, CreatedAt: time.Now()},
				},
			}}, nil
		}),
		resourceFeedFunc(emptyResources),
		WithInterval(time.Hour),
	)

	p.SetIdentity(student(1))
	waitSignal(t, started, "thread fetch start")

	go func() {
		// Let teardown cancel the session before the fetch resolves.
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	p.Stop()

	if saved := st.stored(model.StorageKey(1)); saved != nil && saved.ThreadsBaselined {
		t.Error("in-flight fetch applied its results after teardown")
	}
	if p.Active() {
		t.Error("poller still active after Stop")
	}
}
