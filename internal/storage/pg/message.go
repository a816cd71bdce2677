package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/friendlychat-dev/friendlychat/internal/domain"
	internal_errors "github.com/friendlychat-dev/friendlychat/internal/errors"
)

const messageColumns = "id, author, avatar_url, body_text, image_url, created, favorite"

func scanMessage(row interface{ Scan(...any) error }) (domain.Message, error) {
	var (
		msg      domain.Message
		bodyText sql.NullString
		imageURL sql.NullString
	)
	err := row.Scan(&msg.Id, &msg.Author, &msg.AvatarURL, &bodyText, &imageURL, &msg.CreatedAt, &msg.Favorite)
	if err != nil {
		return domain.Message{}, err
	}
	switch {
	case bodyText.Valid:
		msg.Body = domain.TextBody(bodyText.String)
	case imageURL.Valid:
		msg.Body = domain.ImageBody(imageURL.String)
	}
	return msg, nil
}

func bodyColumns(body domain.Body) (bodyText, imageURL sql.NullString) {
	switch body.Kind {
	case domain.BodyText:
		bodyText = sql.NullString{String: body.Text, Valid: true}
	case domain.BodyImage:
		imageURL = sql.NullString{String: body.ImageURL, Valid: true}
	}
	return
}

// CreateMessage inserts a new record and returns its assigned id.
// The creation timestamp is server-assigned here, not caller-supplied.
func (s *Storage) CreateMessage(ctx context.Context, author domain.Author, avatar domain.AvatarURL, body domain.Body) (domain.MsgId, error) {
	id := uuid.New().String()
	bodyText, imageURL := bodyColumns(body)
	createdTs := time.Now().UTC().Round(time.Microsecond) // database anyway round to microsecond

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO messages(id, author, avatar_url, body_text, image_url, created)
	VALUES($1, $2, $3, $4, $5, $6)`,
		id, author, avatar, bodyText, imageURL, createdTs)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Storage) GetMessage(ctx context.Context, id domain.MsgId) (*domain.Message, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT `+messageColumns+`
	FROM messages
	WHERE id = $1`, id)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &internal_errors.ErrorWithStatusCode{Message: "Message not found", StatusCode: 404}
		}
		return nil, err
	}
	return &msg, nil
}

// UpdateMessage applies a partial update; nil patch fields are untouched.
func (s *Storage) UpdateMessage(ctx context.Context, id domain.MsgId, patch domain.MessagePatch) error {
	if patch.Body == nil && patch.Favorite == nil {
		return nil
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Body != nil {
		bodyText, imageURL := bodyColumns(*patch.Body)
		set("body_text", bodyText)
		set("image_url", imageURL)
	}
	if patch.Favorite != nil {
		set("favorite", *patch.Favorite)
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE messages SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if updated == 0 {
		return &internal_errors.ErrorWithStatusCode{Message: "Message not found", StatusCode: 404}
	}
	return nil
}

func (s *Storage) DeleteMessage(ctx context.Context, id domain.MsgId) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return &internal_errors.ErrorWithStatusCode{Message: "Message not found", StatusCode: 404}
	}
	return nil
}

// DeleteAllExceptFavorites removes every non-favorited record and
// returns the image references the deleted records carried, so the
// caller can clean up blob storage.
func (s *Storage) DeleteAllExceptFavorites(ctx context.Context) ([]domain.ImageRef, error) {
	rows, err := s.db.QueryContext(ctx, `
	DELETE FROM messages
	WHERE NOT favorite
	RETURNING image_url`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []domain.ImageRef
	for rows.Next() {
		var imageURL sql.NullString
		if err := rows.Scan(&imageURL); err != nil {
			return nil, err
		}
		if imageURL.Valid {
			refs = append(refs, imageURL.String)
		}
	}
	return refs, rows.Err()
}

// FetchPage returns messages newest-first. A non-nil cursor is an
// exclusive upper bound: only records strictly older than the cursor
// record are returned. Ties on created are broken by id so the order
// is total.
func (s *Storage) FetchPage(ctx context.Context, cursor *domain.Message, limit int) ([]domain.Message, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if cursor == nil {
		rows, err = s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		ORDER BY created DESC, id DESC
		LIMIT $1`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE (created, id) < ($1, $2)
		ORDER BY created DESC, id DESC
		LIMIT $3`, cursor.CreatedAt, cursor.Id, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

// FetchFavorites returns every favorited record, newest-first.
func (s *Storage) FetchFavorites(ctx context.Context) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+messageColumns+`
	FROM messages
	WHERE favorite
	ORDER BY created DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]domain.Message, error) {
	var msgs []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (s *Storage) HasMessages(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM messages)`).Scan(&exists)
	return exists, err
}

func (s *Storage) HasFavorites(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM messages WHERE favorite)`).Scan(&exists)
	return exists, err
}
