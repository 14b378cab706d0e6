package impl

import (
	"sync"
	"time"

	"bikeshare/internal/domain/entity"
	domainerrors "bikeshare/internal/domain/errors"
	"bikeshare/internal/infra/routing/graph"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// session owns one proximity graph and the station data it was built from.
// All fields are guarded by mu.
type session struct {
	mu sync.Mutex

	id       string
	distance float64
	graph    *graph.Graph
	stations []entity.Station
	table    map[string]entity.Station
	// inventory is mutated by applied redistribution plans
	inventory entity.Inventory
	fetchedAt time.Time

	lastUsed time.Time
	closed   bool
}

func newSession(snapshot *entity.Snapshot, distance float64, g *graph.Graph) *session {
	return &session{
		id:        uuid.NewString(),
		distance:  distance,
		graph:     g,
		stations:  snapshot.Stations,
		table:     snapshot.StationTable(),
		inventory: snapshot.Inventory,
		fetchedAt: snapshot.FetchedAt,
	}
}

// replaceSnapshot swaps in fresh station data
func (s *session) replaceSnapshot(snapshot *entity.Snapshot, g *graph.Graph) {
	s.graph = g
	s.stations = snapshot.Stations
	s.table = snapshot.StationTable()
	s.inventory = snapshot.Inventory
	s.fetchedAt = snapshot.FetchedAt
}

// sessionStore maps session IDs to sessions. A session is used by one request at a
// time; requests for the same session queue on its mutex.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// add registers sess and drops idle sessions that are not in use
func (st *sessionStore) add(sess *session) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	st.sweep(now)

	sess.lastUsed = now
	st.sessions[sess.id] = sess
}

func (st *sessionStore) sweep(now time.Time) {
	if st.ttl <= 0 {
		return
	}

	for id, sess := range st.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		if now.Sub(sess.lastUsed) > st.ttl {
			sess.closed = true
			sess.graph = nil
			delete(st.sessions, id)
		}
		sess.mu.Unlock()
	}
}

// remove drops a session, waiting for any request still using it
func (st *sessionStore) remove(id string) error {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if !ok {
		return errors.Wrapf(domainerrors.ErrSessionNotFound, "session %s", id)
	}

	sess.mu.Lock()
	sess.closed = true
	sess.graph = nil
	sess.mu.Unlock()

	return nil
}

// with runs fn while holding the session lock
func (st *sessionStore) with(id string, fn func(*session) error) error {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	st.mu.Unlock()

	if !ok {
		return errors.Wrapf(domainerrors.ErrSessionNotFound, "session %s", id)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	// removed while waiting for the lock
	if sess.closed {
		return errors.Wrapf(domainerrors.ErrSessionNotFound, "session %s", id)
	}
	sess.lastUsed = st.now()

	return fn(sess)
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	return len(st.sessions)
}
