package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopengine/orderflow/internal/core/domain"
)

func (s *MySQLStore) InsertNotification(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("marshal notification data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, body, data, type, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Body, data, n.Type, n.Status, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

func (s *MySQLStore) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var (
		u         domain.User
		pushToken sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, username, push_token FROM users WHERE id = ?`, userID,
	).Scan(&u.ID, &u.Email, &u.Username, &pushToken)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("query user: %w", err)
	}

	u.PushToken = pushToken.String
	return u, nil
}
