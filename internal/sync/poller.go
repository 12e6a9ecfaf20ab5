// Package sync drives periodic feed polling for the active session.
package sync

import (
	"context"
	"log"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/notify-engine/internal/engine"
	"github.com/nhle/notify-engine/internal/feed"
	"github.com/nhle/notify-engine/internal/identity"
	"github.com/nhle/notify-engine/internal/model"
	"github.com/nhle/notify-engine/internal/store"
)

// fetchTimeout is the maximum time allowed for a single feed fetch.
const fetchTimeout = 30 * time.Second

// defaultInterval is how often the feeds are re-fetched while active.
const defaultInterval = 60 * time.Second

// threadRoutes maps each role to the navigation target attached to
// thread notifications. Roles without an entry are not entitled to the
// thread feed.
var threadRoutes = map[model.Role]model.Route{
	model.RoleStudent:  {Name: "StudentCommunicate"},
	model.RoleParent:   {Name: "ParentMessages"},
	model.RoleLecturer: {Name: "LecturerMessages"},
	model.RoleAdmin:    {Name: "AdminUsers"},
	model.RoleHod:      {Name: "HodCommunications"},
	model.RoleFinance:  {Name: "FinanceAlerts"},
	model.RoleRecords:  {Name: "RecordsReports"},
}

// resourceRoutes maps each role to the navigation target attached to
// resource notifications.
var resourceRoutes = map[model.Role]model.Route{
	model.RoleStudent:  {Name: "StudentLibrary"},
	model.RoleParent:   {Name: "ParentAnnouncements"},
	model.RoleLecturer: {Name: "LecturerRecords"},
	model.RoleAdmin:    {Name: "AdminSystems"},
}

// session is one activation of the poller: a single user with a valid
// credential, an engine holding that user's state, and the goroutine
// polling on their behalf.
type session struct {
	id        string
	identity  identity.Identity
	engine    *engine.Engine
	ctx       context.Context
	cancel    context.CancelFunc
	triggerCh chan struct{}
	done      chan struct{}
}

// Poller polls the thread and resource feeds for the current identity
// and feeds the snapshots to the session's engine. It is Inactive until
// given an identity carrying a credential, and returns to Inactive on
// logout, credential loss, or user switch.
type Poller struct {
	store     store.StateStore
	threads   feed.ThreadFeed
	resources feed.ResourceFeed
	interval  time.Duration

	mu      gosync.Mutex
	current *session
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides the default 60s poll interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// New creates an inactive Poller over the given state store and feeds.
func New(
	st store.StateStore,
	threads feed.ThreadFeed,
	resources feed.ResourceFeed,
	opts ...Option,
) *Poller {
	p := &Poller{
		store:     st,
		threads:   threads,
		resources: resources,
		interval:  defaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetIdentity re-evaluates the Active/Inactive state against the given
// identity. Nil or a credential-less identity deactivates. A changed
// user tears the old session down before the new one starts, so the
// new session always loads its own persisted state, never the prior
// user's. The teardown is synchronous: when SetIdentity returns, the
// old session's schedule is cancelled and its in-flight results will
// be discarded.
func (p *Poller) SetIdentity(id *identity.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id != nil && p.current != nil && p.current.identity == *id {
		return
	}

	p.stopLocked()

	if id == nil || id.Credential == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:        uuid.New().String(),
		identity:  *id,
		ctx:       ctx,
		cancel:    cancel,
		triggerCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	s.engine = engine.NewSession(ctx, id.UserID, p.store)
	p.current = s

	log.Printf("[%s] polling started for user %d (%s)", s.id, id.UserID, id.Role)
	go p.run(s)
}

// Stop deactivates the poller, tearing down any active session.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// stopLocked tears down the current session. Callers must hold p.mu.
func (p *Poller) stopLocked() {
	s := p.current
	if s == nil {
		return
	}
	p.current = nil

	s.cancel()
	<-s.done
	s.engine.Close()
	log.Printf("[%s] polling stopped", s.id)
}

// Engine returns the active session's engine, or nil while inactive.
// Consumers use it to read notifications and mark them read.
func (p *Poller) Engine() *engine.Engine {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil
	}
	return p.current.engine
}

// Active reports whether a session is currently being polled.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Refresh triggers an immediate poll cycle for the active session
// without waiting for the next tick. No-op while inactive.
func (p *Poller) Refresh() {
	p.mu.Lock()
	s := p.current
	p.mu.Unlock()

	if s == nil {
		return
	}
	select {
	case s.triggerCh <- struct{}{}:
	default:
		// A cycle is already queued; skip to avoid blocking.
	}
}

// run executes poll cycles for one session: one immediately on
// activation, then on every tick or manual trigger until teardown.
func (p *Poller) run(s *session) {
	defer close(s.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.cycle(s)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			p.cycle(s)
		case <-s.triggerCh:
			p.cycle(s)
		}
	}
}

// cycle fetches every feed the session's role is entitled to. The two
// feeds mutate disjoint watermark state, so they run concurrently, but
// both are joined before the cycle ends. Failure of one feed never
// blocks the other; the next cycle retries naturally.
func (p *Poller) cycle(s *session) {
	var wg gosync.WaitGroup

	if route, ok := threadRoutes[s.identity.Role]; ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.syncThreads(s, route)
		}()
	}

	if route, ok := resourceRoutes[s.identity.Role]; ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.syncResources(s, route)
		}()
	}

	wg.Wait()
}

func (p *Poller) syncThreads(s *session, route model.Route) {
	ctx, cancel := context.WithTimeout(s.ctx, fetchTimeout)
	defer cancel()

	threads, err := p.threads.FetchThreads(ctx, s.identity.Credential)
	if err != nil {
		log.Printf("[%s] thread feed fetch failed: %v", s.id, err)
		return
	}

	// A fetch that resolves after teardown must not apply its results.
	if s.ctx.Err() != nil {
		return
	}
	s.engine.IngestThreads(threads, route)
}

func (p *Poller) syncResources(s *session, route model.Route) {
	ctx, cancel := context.WithTimeout(s.ctx, fetchTimeout)
	defer cancel()

	resources, err := p.resources.FetchResources(ctx, s.identity.Credential)
	if err != nil {
		log.Printf("[%s] resource feed fetch failed: %v", s.id, err)
		return
	}

	if s.ctx.Err() != nil {
		return
	}
	s.engine.IngestResources(resources, route)
}
