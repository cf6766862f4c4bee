package fabricator

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mickamy/fabricator/internal/buffer"
)

// SessionManager keeps a stack of nested sessions and the undo records of
// each one. Records are replayed in reverse through the adapter when their
// session stops.
type SessionManager struct {
	adapter Adapter
	logger  zerolog.Logger

	stopMu sync.Mutex // serializes StopSession

	mu       sync.Mutex
	sessions []string // top of the stack is the last element
	data     map[string]map[string]*buffer.Buffer[record]
}

// NewSessionManager creates a SessionManager replaying undo actions through adapter.
func NewSessionManager(adapter Adapter, logger zerolog.Logger) *SessionManager {
	return &SessionManager{
		adapter: adapter,
		logger:  logger.With().Str("component", "session").Logger(),
		data:    map[string]map[string]*buffer.Buffer[record]{},
	}
}

// StartSession pushes a new session and returns its id. Mutations recorded
// from now on belong to it until a newer session starts or it is stopped.
func (m *SessionManager) StartSession() string {
	id := uuid.NewString()

	m.mu.Lock()
	m.sessions = append(m.sessions, id)
	depth := len(m.sessions)
	m.mu.Unlock()

	m.logger.Debug().Str("session", id).Int("depth", depth).Msg("session started")
	return id
}

// Active reports whether at least one session is running.
func (m *SessionManager) Active() bool {
	return m.Depth() > 0
}

// Depth returns the number of running sessions.
func (m *SessionManager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Current returns the id of the most recently started session, or "".
func (m *SessionManager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) == 0 {
		return ""
	}
	return m.sessions[len(m.sessions)-1]
}

// Pending returns the number of undo records held by the current session.
func (m *SessionManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) == 0 {
		return 0
	}
	n := 0
	for _, buf := range m.data[m.sessions[len(m.sessions)-1]] {
		n += buf.Len()
	}
	return n
}

func (m *SessionManager) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.sessions, id)
}

// SaveSessionData records data against the current session. data is a
// created id, a Row holding the prior state of an updated row, a Deleted
// snapshot, or a list of those. Snapshots are copied.
//
// It returns false when nothing was tracked: no session is running or data
// could not be classified.
func (m *SessionManager) SaveSessionData(table string, data any) bool {
	recs, err := newRecords(data)
	if err != nil {
		m.logger.Warn().Err(err).Str("table", table).Msg("session data dropped")
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) == 0 {
		return false
	}
	if len(recs) == 0 {
		return true
	}

	top := m.sessions[len(m.sessions)-1]
	tables, ok := m.data[top]
	if !ok {
		tables = map[string]*buffer.Buffer[record]{}
		m.data[top] = tables
	}
	buf, ok := tables[table]
	if !ok {
		buf = buffer.NewBuffer[record]()
		tables[table] = buf
	}
	buf.Add(recs...)
	return true
}

// StopSession pops the current session and undoes every mutation recorded
// in it. The session and its records are detached before any undo action
// runs, so data saved meanwhile belongs to the enclosing session or is not
// tracked. Undo actions are dispatched concurrently and all of them are
// attempted; the first failure is returned.
func (m *SessionManager) StopSession(ctx context.Context) error {
	m.stopMu.Lock()
	defer m.stopMu.Unlock()

	m.mu.Lock()
	if len(m.sessions) == 0 {
		m.mu.Unlock()
		return ErrNoActiveSession
	}
	id := m.sessions[len(m.sessions)-1]
	m.sessions = m.sessions[:len(m.sessions)-1]
	tables := m.data[id]
	delete(m.data, id)
	depth := len(m.sessions)
	m.mu.Unlock()

	err := m.undo(ctx, id, tables)

	ev := m.logger.Debug()
	if err != nil {
		ev = m.logger.Error().Err(err)
	}
	ev.Str("session", id).Int("depth", depth).Msg("session stopped")
	return err
}

// StopAllSessions stops sessions from the newest to the oldest, each one
// fully restored before the next begins.
func (m *SessionManager) StopAllSessions(ctx context.Context) error {
	for m.Active() {
		if err := m.StopSession(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *SessionManager) undo(ctx context.Context, id string, tables map[string]*buffer.Buffer[record]) error {
	if len(tables) == 0 {
		return nil
	}

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	slices.Sort(names)

	var g errgroup.Group
	for _, table := range names {
		table := table
		recs := tables[table].Drain()

		// rows created or deleted in the session are not restored by update
		superseded := make(map[any]recordKind)
		for _, r := range recs {
			if r.kind != recordUpdated && r.key != nil {
				superseded[normalizeKey(r.key)] = r.kind
			}
		}

		for _, r := range recs {
			r := r
			log := m.logger.Debug().Str("session", id).Str("table", table).Stringer("kind", r.kind)
			switch r.kind {
			case recordCreated:
				log.Interface("id", r.key).Msg("removing created row")
				g.Go(func() error {
					return m.adapter.Remove(ctx, table, []any{r.key})
				})
			case recordDeleted:
				log.Msg("re-creating deleted row")
				g.Go(func() error {
					_, err := m.adapter.Create(ctx, table, r.row)
					return err
				})
			case recordUpdated:
				if by, ok := superseded[normalizeKey(r.key)]; ok {
					log.Interface("id", r.key).Stringer("superseded_by", by).Msg("skipping restore")
					continue
				}
				fields := without(r.row, func(col string) bool { return col == "id" })
				if len(fields) == 0 {
					log.Interface("id", r.key).Msg("nothing to restore")
					continue
				}
				log.Interface("id", r.key).Msg("restoring updated row")
				g.Go(func() error {
					return m.adapter.Update(ctx, table, fields, r.key)
				})
			}
		}
	}
	return g.Wait()
}
