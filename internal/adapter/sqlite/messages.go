package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/neomorfeo/mycouch/internal/domain"
)

const messageColumns = `m.id, m.kind, m.subject, m.text, m.sender_id, m.recipient_ids, m.reply_to_id,
	m.sent_on, m.flags, m.date_from, m.date_to, m.status, m.version`

// CreateMessage stores msg and one notification per recipient atomically.
// The updated notifications are compare-and-swapped in the same transaction.
func (s *Store) CreateMessage(ctx context.Context, msg domain.Message, notifications []domain.Notification, updated ...domain.Notification) error {
	recipients, err := jsonText(nonNil(msg.RecipientIDs))
	if err != nil {
		return err
	}
	flags, err := jsonText(nonNil(msg.Flags))
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, kind, subject, text, sender_id, recipient_ids, reply_to_id,
		                       sent_on, flags, date_from, date_to, status, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, string(msg.Kind), msg.Subject, msg.Text, msg.SenderID, recipients,
		nullString(msg.ReplyToID), formatTime(msg.SentOn), flags,
		msg.DateFrom, msg.DateTo, msg.Status, msg.Version,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("inserting message: %w", err)
	}

	for _, n := range notifications {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notifications (id, message_kind, user_id, message_id, status, version)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			n.ID, string(n.MessageKind), n.UserID, n.MessageID, n.Status, n.Version,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrUserNotFound
			}
			return fmt.Errorf("inserting notification: %w", err)
		}
	}

	for _, n := range updated {
		result, err := tx.ExecContext(ctx,
			`UPDATE notifications SET status = ?, version = version + 1
			 WHERE id = ? AND version = ?`,
			n.Status, n.ID, n.Version,
		)
		if err != nil {
			return fmt.Errorf("updating notification: %w", err)
		}
		if err := compareAndSwap(ctx, tx, result, "notifications", n.ID, domain.ErrNotificationNotFound); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}
	return nil
}

func (s *Store) GetMessage(ctx context.Context, kind domain.MessageKind, id string) (domain.Message, error) {
	m, err := scanMessage(s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages m WHERE m.kind = ? AND m.id = ?`,
		string(kind), id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Message{}, domain.ErrMessageNotFound
	}
	return m, err
}

// ListMessages returns the messages userID received (DirectionIn) or sent
// (DirectionOut), newest first.
func (s *Store) ListMessages(ctx context.Context, kind domain.MessageKind, userID string, dir domain.Direction) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m WHERE m.kind = ? AND m.sender_id = ?`
	if dir == domain.DirectionIn {
		query = `SELECT ` + messageColumns + ` FROM messages m
		         JOIN notifications n ON n.message_id = m.id
		         WHERE m.kind = ? AND n.user_id = ?`
	}
	query += ` ORDER BY m.sent_on DESC, m.id`

	rows, err := s.db.QueryContext(ctx, query, string(kind), userID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMessage writes the request status and flags if the stored version
// still equals msg.Version, and bumps the version.
func (s *Store) UpdateMessage(ctx context.Context, msg domain.Message) error {
	flags, err := jsonText(nonNil(msg.Flags))
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = ?, flags = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		msg.Status, flags, msg.ID, msg.Version,
	)
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}
	return compareAndSwap(ctx, s.db, result, "messages", msg.ID, domain.ErrMessageNotFound)
}

// FindNotification returns the notification userID holds for messageID.
func (s *Store) FindNotification(ctx context.Context, messageID, userID string) (domain.Notification, error) {
	var n domain.Notification
	var kind string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, message_kind, user_id, message_id, status, version
		 FROM notifications WHERE message_id = ? AND user_id = ?`,
		messageID, userID,
	).Scan(&n.ID, &kind, &n.UserID, &n.MessageID, &n.Status, &n.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Notification{}, domain.ErrNotificationNotFound
		}
		return domain.Notification{}, fmt.Errorf("scanning notification: %w", err)
	}

	n.MessageKind = domain.MessageKind(kind)
	return n, nil
}

func (s *Store) UpdateNotification(ctx context.Context, n domain.Notification) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		n.Status, n.ID, n.Version,
	)
	if err != nil {
		return fmt.Errorf("updating notification: %w", err)
	}
	return compareAndSwap(ctx, s.db, result, "notifications", n.ID, domain.ErrNotificationNotFound)
}

func scanMessage(row scanner) (domain.Message, error) {
	var m domain.Message
	var kind, recipients, sentOn, flags string
	var replyTo sql.NullString

	err := row.Scan(&m.ID, &kind, &m.Subject, &m.Text, &m.SenderID, &recipients, &replyTo,
		&sentOn, &flags, &m.DateFrom, &m.DateTo, &m.Status, &m.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Message{}, err
		}
		return domain.Message{}, fmt.Errorf("scanning message: %w", err)
	}

	m.Kind = domain.MessageKind(kind)
	m.ReplyToID = replyTo.String
	m.SentOn = parseTime(sentOn)
	if err := json.Unmarshal([]byte(recipients), &m.RecipientIDs); err != nil {
		return domain.Message{}, fmt.Errorf("decoding recipient_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(flags), &m.Flags); err != nil {
		return domain.Message{}, fmt.Errorf("decoding flags: %w", err)
	}
	return m, nil
}
