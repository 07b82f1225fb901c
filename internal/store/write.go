package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// WriteRun stores a run and its events in one transaction and returns the
// new run ID.
func (s *Store) WriteRun(ctx context.Context, scenario string, pass bool, errs []string, events []Event) (string, error) {
	if errs == nil {
		errs = []string{}
	}
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return "", fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write run: %w", err)
	}
	defer tx.Rollback()

	id := s.newID()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, pass, errors)
		VALUES (?, ?, ?, ?)
	`, id, scenario, pass, string(errsJSON)); err != nil {
		return "", fmt.Errorf("write run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (run_id, seq, kind, object, member, value_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("write events: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		valueJSON, err := json.Marshal(ev.Value)
		if err != nil {
			return "", fmt.Errorf("write event %d: %w", ev.Seq, err)
		}
		if _, err := stmt.ExecContext(ctx, id, ev.Seq, ev.Kind, ev.Object, ev.Member, string(valueJSON)); err != nil {
			return "", fmt.Errorf("write event %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write run: %w", err)
	}
	return id, nil
}

// DeleteRun removes a run and its events. Deleting an unknown run is not an
// error.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
