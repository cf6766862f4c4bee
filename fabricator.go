package fabricator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config defines the main configuration options for fabricator.
type Config struct {
	Logger         *zerolog.Logger // defaults to a no-op logger
	KeepDeletedIDs bool            // re-create deleted rows with their original id
}

// Fabricator creates, updates and removes rows through an Adapter and
// records every mutation so the running session can undo it.
type Fabricator struct {
	cfg      Config
	adapter  Adapter
	sessions *SessionManager
	logger   zerolog.Logger
}

// New creates a Fabricator on top of adapter.
func New(adapter Adapter, cfg Config) (*Fabricator, error) {
	if adapter == nil {
		return nil, ErrNilAdapter
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Fabricator{
		cfg:      cfg,
		adapter:  adapter,
		sessions: NewSessionManager(adapter, logger),
		logger:   logger.With().Str("component", "fabricator").Logger(),
	}, nil
}

// Adapter returns the underlying adapter.
func (f *Fabricator) Adapter() Adapter {
	return f.adapter
}

// Sessions returns the session manager.
func (f *Fabricator) Sessions() *SessionManager {
	return f.sessions
}

// StartSession starts a new, possibly nested, session.
func (f *Fabricator) StartSession() string {
	return f.sessions.StartSession()
}

// StopSession restores everything changed during the current session.
func (f *Fabricator) StopSession(ctx context.Context) error {
	return f.sessions.StopSession(ctx)
}

// StopAllSessions stops every running session, newest first.
func (f *Fabricator) StopAllSessions(ctx context.Context) error {
	return f.sessions.StopAllSessions(ctx)
}

// Create inserts data into table and returns the first generated id.
func (f *Fabricator) Create(ctx context.Context, table string, data Row) (any, error) {
	ids, err := f.adapter.Create(ctx, table, cloneRow(data))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	f.track(ctx, table, ids)
	return ids[0], nil
}

// Remove deletes the rows of table matching filter. The rows are captured
// beforehand and inserted again when the session stops.
func (f *Fabricator) Remove(ctx context.Context, table string, filter any) error {
	rows, generated, err := f.snapshot(ctx, table, filter)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if err := f.adapter.Remove(ctx, table, filter); err != nil {
		return err
	}

	deleted := make([]deletedRow, len(rows))
	for i, row := range rows {
		deleted[i] = deletedRow{
			key: row["id"],
			row: without(row, func(col string) bool {
				return generated[col] || (col == "id" && !f.cfg.KeepDeletedIDs)
			}),
		}
	}
	f.track(ctx, table, deleted)
	return nil
}

// Update sets fields on every row of table matching filter, one update per
// row by id. The prior state of each updated row is restored when the
// session stops.
func (f *Fabricator) Update(ctx context.Context, table string, fields Row, filter any) error {
	rows, generated, err := f.snapshot(ctx, table, filter)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if id, ok := row["id"]; !ok || id == nil {
			return fmt.Errorf("%w: %s", ErrMissingID, table)
		}
	}

	updated := make([]bool, len(rows))
	var g errgroup.Group
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			if err := f.adapter.Update(ctx, table, cloneRow(fields), row["id"]); err != nil {
				return err
			}
			updated[i] = true
			return nil
		})
	}
	err = g.Wait()

	snapshots := make([]Row, 0, len(rows))
	for i, row := range rows {
		if updated[i] {
			snapshots = append(snapshots, without(row, func(col string) bool { return generated[col] && col != "id" }))
		}
	}
	if len(snapshots) > 0 {
		f.track(ctx, table, snapshots)
	}
	return err
}

// Select reads fields (all columns when empty) of the rows matching filter.
// Reads are never tracked.
func (f *Fabricator) Select(ctx context.Context, table string, fields []string, filter any) ([]Row, error) {
	return f.adapter.Select(ctx, table, fields, filter)
}

// CloseConnection stops all sessions, restoring every tracked change, then
// disconnects the adapter. It has to complete before the process exits.
func (f *Fabricator) CloseConnection(ctx context.Context) error {
	stopErr := f.sessions.StopAllSessions(ctx)
	if stopErr != nil {
		f.logger.Error().Err(stopErr).Msg("failed to stop sessions before disconnect")
	}
	return errors.Join(stopErr, f.adapter.Disconnect())
}

// snapshot selects full rows, along with the generated columns of table
// when the adapter can report them.
func (f *Fabricator) snapshot(ctx context.Context, table string, filter any) ([]Row, map[string]bool, error) {
	if gs, ok := f.adapter.(GeneratedColumnSelector); ok {
		return gs.SelectWithGenerated(ctx, table, nil, filter)
	}
	rows, err := f.adapter.Select(ctx, table, nil, filter)
	return rows, nil, err
}

func (f *Fabricator) track(ctx context.Context, table string, data any) {
	if extractSkip(ctx) {
		return
	}
	if !f.sessions.SaveSessionData(table, data) {
		f.logger.Debug().Str("table", table).Msg("mutation not tracked")
	}
}
