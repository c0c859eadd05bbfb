package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/neomorfeo/mycouch/internal/domain"
)

const connectionColumns = `id, kind, description, text, user_from_id, user_to_id, sent_on,
	type_status, friendship_level, flags, version`

func (s *Store) CreateConnection(ctx context.Context, c domain.Connection) error {
	flags, err := jsonText(nonNil(c.Flags))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO connections (`+connectionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Kind), c.Description, c.Text, c.UserFromID, c.UserToID,
		formatTime(c.SentOn), c.Status, c.FriendshipLevel, flags, c.Version,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("inserting connection: %w", err)
	}
	return nil
}

func (s *Store) GetConnection(ctx context.Context, kind domain.ConnectionKind, id string) (domain.Connection, error) {
	c, err := scanConnection(s.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE kind = ? AND id = ?`,
		string(kind), id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Connection{}, domain.ErrConnectionNotFound
	}
	return c, err
}

// ListConnections returns the connections of kind userID takes part in,
// newest first.
func (s *Store) ListConnections(ctx context.Context, kind domain.ConnectionKind, userID string) ([]domain.Connection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+connectionColumns+` FROM connections
		 WHERE kind = ? AND (user_from_id = ? OR user_to_id = ?)
		 ORDER BY sent_on DESC, id`,
		string(kind), userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	defer rows.Close()

	var out []domain.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateConnection writes the mutable columns if the stored version still
// equals c.Version, and bumps the version.
func (s *Store) UpdateConnection(ctx context.Context, c domain.Connection) error {
	flags, err := jsonText(nonNil(c.Flags))
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE connections
		 SET description = ?, text = ?, type_status = ?, friendship_level = ?, flags = ?,
		     version = version + 1
		 WHERE id = ? AND version = ?`,
		c.Description, c.Text, c.Status, c.FriendshipLevel, flags, c.ID, c.Version,
	)
	if err != nil {
		return fmt.Errorf("updating connection: %w", err)
	}
	return compareAndSwap(ctx, s.db, result, "connections", c.ID, domain.ErrConnectionNotFound)
}

func scanConnection(row scanner) (domain.Connection, error) {
	var c domain.Connection
	var kind, sentOn, flags string

	err := row.Scan(&c.ID, &kind, &c.Description, &c.Text, &c.UserFromID, &c.UserToID, &sentOn,
		&c.Status, &c.FriendshipLevel, &flags, &c.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Connection{}, err
		}
		return domain.Connection{}, fmt.Errorf("scanning connection: %w", err)
	}

	c.Kind = domain.ConnectionKind(kind)
	c.SentOn = parseTime(sentOn)
	if err := json.Unmarshal([]byte(flags), &c.Flags); err != nil {
		return domain.Connection{}, fmt.Errorf("decoding flags: %w", err)
	}
	return c, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
