package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/mycouch/internal/domain"
)

const activityColumns = `id, creator_id, title, description, created_at, scheduled_from,
	scheduled_until, location, location_coordinates, city_id, version`

// CreateActivity stores a and its initial RSVPs atomically.
func (s *Store) CreateActivity(ctx context.Context, a domain.Activity, rsvps ...domain.ActivityRSVP) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO activities (`+activityColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CreatorID, a.Title, a.Description, formatTime(a.CreatedAt), formatTime(a.ScheduledFrom),
		nullTime(a.ScheduledUntil), a.Location, nullPoint(a.Coordinates), a.CityID, a.Version,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrCityNotFound
		}
		return fmt.Errorf("inserting activity: %w", err)
	}

	for _, r := range rsvps {
		if err := upsertRSVP(ctx, tx, r); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing activity: %w", err)
	}
	return nil
}

func (s *Store) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	a, err := scanActivity(s.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	if err != nil {
		return domain.Activity{}, err
	}

	counts, err := s.attending(ctx, id)
	if err != nil {
		return domain.Activity{}, err
	}
	a.Attending = counts[id]
	return a, nil
}

func (s *Store) ListActivities(ctx context.Context, cityID string) ([]domain.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activities
		 WHERE ?1 = '' OR city_id = ?1
		 ORDER BY scheduled_from, id`, cityID)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	var out []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	counts, err := s.attending(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Attending = counts[out[i].ID]
	}
	return out, nil
}

// UpdateActivity writes the mutable columns if the stored version still
// equals a.Version, and bumps the version.
func (s *Store) UpdateActivity(ctx context.Context, a domain.Activity) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE activities
		 SET title = ?, description = ?, scheduled_from = ?, scheduled_until = ?,
		     location = ?, location_coordinates = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		a.Title, a.Description, formatTime(a.ScheduledFrom), nullTime(a.ScheduledUntil),
		a.Location, nullPoint(a.Coordinates), a.ID, a.Version,
	)
	if err != nil {
		return fmt.Errorf("updating activity: %w", err)
	}
	return compareAndSwap(ctx, s.db, result, "activities", a.ID, domain.ErrActivityNotFound)
}

// SetRSVP keeps the row id of an existing answer and replaces its status
// and comment.
func (s *Store) SetRSVP(ctx context.Context, r domain.ActivityRSVP) (domain.ActivityRSVP, error) {
	if err := upsertRSVP(ctx, s.db, r); err != nil {
		return domain.ActivityRSVP{}, err
	}

	var stored domain.ActivityRSVP
	var status string
	var comment sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, activity_id, user_id, rsvp_status, comment
		 FROM activity_rsvps WHERE activity_id = ? AND user_id = ?`,
		r.ActivityID, r.UserID,
	).Scan(&stored.ID, &stored.ActivityID, &stored.UserID, &status, &comment)
	if err != nil {
		return domain.ActivityRSVP{}, fmt.Errorf("reading rsvp: %w", err)
	}
	stored.Status = domain.RSVPStatus(status)
	stored.Comment = comment.String
	return stored, nil
}

func (s *Store) ListRSVPs(ctx context.Context, activityID string) ([]domain.ActivityRSVP, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, activity_id, user_id, rsvp_status, comment
		 FROM activity_rsvps WHERE activity_id = ? ORDER BY user_id`, activityID)
	if err != nil {
		return nil, fmt.Errorf("querying rsvps: %w", err)
	}
	defer rows.Close()

	var out []domain.ActivityRSVP
	for rows.Next() {
		var r domain.ActivityRSVP
		var status string
		var comment sql.NullString
		if err := rows.Scan(&r.ID, &r.ActivityID, &r.UserID, &status, &comment); err != nil {
			return nil, fmt.Errorf("scanning rsvp: %w", err)
		}
		r.Status = domain.RSVPStatus(status)
		r.Comment = comment.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// attending counts answers per status for activityID, or for every activity
// when it is empty.
func (s *Store) attending(ctx context.Context, activityID string) (map[string]map[domain.RSVPStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT activity_id, rsvp_status, COUNT(*) FROM activity_rsvps
		 WHERE ?1 = '' OR activity_id = ?1
		 GROUP BY activity_id, rsvp_status`, activityID)
	if err != nil {
		return nil, fmt.Errorf("counting rsvps: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[domain.RSVPStatus]int)
	for rows.Next() {
		var id, status string
		var n int
		if err := rows.Scan(&id, &status, &n); err != nil {
			return nil, fmt.Errorf("scanning rsvp count: %w", err)
		}
		if out[id] == nil {
			out[id] = make(map[domain.RSVPStatus]int)
		}
		out[id][domain.RSVPStatus(status)] = n
	}
	return out, rows.Err()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertRSVP(ctx context.Context, db execer, r domain.ActivityRSVP) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO activity_rsvps (id, activity_id, user_id, rsvp_status, comment)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (activity_id, user_id)
		 DO UPDATE SET rsvp_status = excluded.rsvp_status, comment = excluded.comment`,
		r.ID, r.ActivityID, r.UserID, string(r.Status), nullString(r.Comment),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("upserting rsvp: %w", err)
	}
	return nil
}

func scanActivity(row scanner) (domain.Activity, error) {
	var a domain.Activity
	var createdAt, from string
	var until, coords sql.NullString

	err := row.Scan(&a.ID, &a.CreatorID, &a.Title, &a.Description, &createdAt, &from,
		&until, &a.Location, &coords, &a.CityID, &a.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Activity{}, err
		}
		return domain.Activity{}, fmt.Errorf("scanning activity: %w", err)
	}

	a.CreatedAt = parseTime(createdAt)
	a.ScheduledFrom = parseTime(from)
	if until.Valid {
		t := parseTime(until.String)
		a.ScheduledUntil = &t
	}
	if coords.Valid {
		var p domain.Point
		if err := p.Scan(coords.String); err != nil {
			return domain.Activity{}, err
		}
		a.Coordinates = &p
	}
	return a, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullPoint(p *domain.Point) any {
	if p == nil {
		return nil
	}
	return *p
}
