package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fetcharr/internal/catalog"
)

// TrackedItem is the persisted per-series or per-movie search history.
type TrackedItem struct {
	ID             int64
	Instance       string
	Kind           catalog.ContentKind
	ExternalID     int64
	SearchAttempts int
	LastSearchedAt *time.Time
	GrabsConfirmed int
	LastGrabAt     *time.Time
}

// StatesForCandidates batch-loads tracked state for all candidates of one
// instance. Candidates without history compose to the zero state.
func (s *Store) StatesForCandidates(ctx context.Context, instance string, candidates []catalog.Candidate) (StateSet, error) {
	set := StateSet{
		items: make(map[itemKey]itemState),
		subs:  make(map[subKey]subState),
	}
	if len(candidates) == 0 {
		return set, nil
	}

	ids := make(map[catalog.ContentKind][]int64)
	seen := make(map[itemKey]struct{}, len(candidates))
	for _, c := range candidates {
		key := itemKey{kind: c.Kind, externalID: c.ExternalID}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ids[c.Kind] = append(ids[c.Kind], c.ExternalID)
	}

	var rowIDs []int64
	for kind, externalIDs := range ids {
		placeholders := makePlaceholders(len(externalIDs))
		args := make([]any, 0, len(externalIDs)+2)
		args = append(args, instance, string(kind))
		for _, id := range externalIDs {
			args = append(args, id)
		}

		rows, err := s.db.QueryContext(
			ctx,
			`SELECT id, external_id, search_attempts, last_searched_at, grabs_confirmed, last_grab_at
             FROM tracked_items
             WHERE instance = ? AND content_kind = ? AND external_id IN (`+placeholders+`)`,
			args...,
		)
		if err != nil {
			return set, fmt.Errorf("query tracked items: %w", err)
		}

		for rows.Next() {
			var (
				rowID      int64
				externalID int64
				attempts   int
				searchedAt sql.NullString
				grabs      int
				grabAt     sql.NullString
			)
			if err := rows.Scan(&rowID, &externalID, &attempts, &searchedAt, &grabs, &grabAt); err != nil {
				rows.Close()
				return set, fmt.Errorf("scan tracked item: %w", err)
			}
			set.items[itemKey{kind: kind, externalID: externalID}] = itemState{
				rowID:          rowID,
				attempts:       attempts,
				lastSearchedAt: parseNullableTime(searchedAt),
				grabsConfirmed: grabs,
				lastGrabAt:     parseNullableTime(grabAt),
			}
			rowIDs = append(rowIDs, rowID)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return set, fmt.Errorf("iterate tracked items: %w", err)
		}
		rows.Close()
	}

	if len(rowIDs) == 0 {
		return set, nil
	}

	placeholders := makePlaceholders(len(rowIDs))
	args := make([]any, len(rowIDs))
	for i, id := range rowIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT item_id, season, episode, attempts, last_searched_at
         FROM tracked_sub_items
         WHERE item_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return set, fmt.Errorf("query tracked sub items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemID     int64
			season     int
			episode    int
			attempts   int
			searchedAt sql.NullString
		)
		if err := rows.Scan(&itemID, &season, &episode, &attempts, &searchedAt); err != nil {
			return set, fmt.Errorf("scan tracked sub item: %w", err)
		}
		set.subs[subKey{itemID: itemID, season: season, episode: episode}] = subState{
			attempts:       attempts,
			lastSearchedAt: parseNullableTime(searchedAt),
		}
	}
	return set, rows.Err()
}

// RecordSearch registers a dispatched search against the candidate's tracked
// item, and for episodes against the per-episode sub-item as well. Both
// increments happen in one transaction so attempt counters never drift.
func (s *Store) RecordSearch(ctx context.Context, instance string, candidate catalog.Candidate, at time.Time) error {
	timestamp := formatTime(at)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin search tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO tracked_items (instance, content_kind, external_id, search_attempts, last_searched_at)
         VALUES (?, ?, ?, 1, ?)
         ON CONFLICT (instance, content_kind, external_id)
         DO UPDATE SET search_attempts = search_attempts + 1, last_searched_at = excluded.last_searched_at`,
		instance,
		string(candidate.Kind),
		candidate.ExternalID,
		timestamp,
	); err != nil {
		return fmt.Errorf("record item search: %w", err)
	}

	if candidate.IsEpisode() {
		var itemID int64
		row := tx.QueryRowContext(
			ctx,
			`SELECT id FROM tracked_items WHERE instance = ? AND content_kind = ? AND external_id = ?`,
			instance,
			string(candidate.Kind),
			candidate.ExternalID,
		)
		if err := row.Scan(&itemID); err != nil {
			return fmt.Errorf("resolve tracked item: %w", err)
		}

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO tracked_sub_items (item_id, season, episode, attempts, last_searched_at)
             VALUES (?, ?, ?, 1, ?)
             ON CONFLICT (item_id, season, episode)
             DO UPDATE SET attempts = attempts + 1, last_searched_at = excluded.last_searched_at`,
			itemID,
			candidate.Season,
			candidate.Episode,
			timestamp,
		); err != nil {
			return fmt.Errorf("record sub item search: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit search tx: %w", err)
	}
	return nil
}

// RecordGrab registers one confirmed grab for a tracked item. The guard keeps
// grabs_confirmed bounded by search_attempts so repeated confirmations of the
// same dispatch never inflate the success rate.
func (s *Store) RecordGrab(ctx context.Context, instance string, kind catalog.ContentKind, externalID int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tracked_items
         SET grabs_confirmed = grabs_confirmed + 1, last_grab_at = ?
         WHERE instance = ? AND content_kind = ? AND external_id = ?
           AND grabs_confirmed < search_attempts`,
		formatTime(at),
		instance,
		string(kind),
		externalID,
	)
	if err != nil {
		return false, fmt.Errorf("record grab: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ItemState returns the tracked item row for one external id.
func (s *Store) ItemState(ctx context.Context, instance string, kind catalog.ContentKind, externalID int64) (*TrackedItem, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, instance, content_kind, external_id, search_attempts, last_searched_at, grabs_confirmed, last_grab_at
         FROM tracked_items
         WHERE instance = ? AND content_kind = ? AND external_id = ?`,
		instance,
		string(kind),
		externalID,
	)
	item, err := scanTrackedItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tracked item: %w", err)
	}
	return item, nil
}

// ListItems returns tracked items for an instance ordered by most recently
// searched. An empty instance lists every instance.
func (s *Store) ListItems(ctx context.Context, instance string, limit int) ([]*TrackedItem, error) {
	query := `SELECT id, instance, content_kind, external_id, search_attempts, last_searched_at, grabs_confirmed, last_grab_at
        FROM tracked_items`
	args := []any{}
	if instance != "" {
		query += ` WHERE instance = ?`
		args = append(args, instance)
	}
	query += ` ORDER BY last_searched_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracked items: %w", err)
	}
	defer rows.Close()

	var items []*TrackedItem
	for rows.Next() {
		item, err := scanTrackedItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanTrackedItem(scanner interface{ Scan(dest ...any) error }) (*TrackedItem, error) {
	var (
		item       TrackedItem
		kind       string
		searchedAt sql.NullString
		grabAt     sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&item.Instance,
		&kind,
		&item.ExternalID,
		&item.SearchAttempts,
		&searchedAt,
		&item.GrabsConfirmed,
		&grabAt,
	); err != nil {
		return nil, err
	}
	item.Kind = catalog.ContentKind(kind)
	item.LastSearchedAt = parseNullableTime(searchedAt)
	item.LastGrabAt = parseNullableTime(grabAt)
	return &item, nil
}
