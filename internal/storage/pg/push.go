package pg

import (
	"context"

	"github.com/friendlychat-dev/friendlychat/internal/domain"
)

// SavePushToken registers a device token for uid. A token already
// registered to another user is re-parented, matching the
// one-token-one-device model.
func (s *Storage) SavePushToken(ctx context.Context, uid domain.UserId, token string) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO push_tokens(token, uid, updated)
	VALUES($1, $2, now())
	ON CONFLICT (token) DO UPDATE SET uid = EXCLUDED.uid, updated = now()`,
		token, uid)
	return err
}

func (s *Storage) DeletePushToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_tokens WHERE token = $1`, token)
	return err
}

func (s *Storage) PushTokens(ctx context.Context, uid domain.UserId) (domain.PushTokens, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT token FROM push_tokens WHERE uid = $1`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens domain.PushTokens
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
