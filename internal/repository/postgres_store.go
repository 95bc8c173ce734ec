package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
)

// PostgresSchema creates the notification and watchlist tables.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS notifications (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		signal_id    TEXT NOT NULL,
		asset_symbol TEXT NOT NULL,
		kind         TEXT NOT NULL,
		title        TEXT NOT NULL,
		message      TEXT NOT NULL,
		priority     TEXT NOT NULL,
		state        TEXT NOT NULL,
		sent_at      TIMESTAMPTZ NOT NULL,
		read_at      TIMESTAMPTZ,
		archived_at  TIMESTAMPTZ,
		group_id     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_sent_idx ON notifications (user_id, sent_at DESC)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_asset_idx ON notifications (user_id, asset_symbol, sent_at DESC)`,
	`CREATE TABLE IF NOT EXISTS watchlists (
		user_id      TEXT NOT NULL,
		asset_symbol TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, asset_symbol)
	)`,
	`CREATE INDEX IF NOT EXISTS watchlists_asset_idx ON watchlists (asset_symbol)`,
	`CREATE TABLE IF NOT EXISTS user_contacts (
		user_id          TEXT PRIMARY KEY,
		email            TEXT NOT NULL DEFAULT '',
		telegram_chat_id BIGINT NOT NULL DEFAULT 0,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
}

const notificationColumns = `id, user_id, signal_id, asset_symbol, kind, title, message, priority, state, sent_at, read_at, archived_at, group_id`

type PostgresNotificationStore struct {
	pool *pgxpool.Pool
}

func NewPostgresNotificationStore(pool *pgxpool.Pool) *PostgresNotificationStore {
	return &PostgresNotificationStore{pool: pool}
}

func (s *PostgresNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		n.ID, n.OwnerUserID, n.SignalID, n.AssetSymbol, string(n.Kind), n.Title, n.Message,
		string(n.Priority), string(n.State), n.SentAt, n.ReadAt, n.ArchivedAt, n.GroupID,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresNotificationStore) Get(ctx context.Context, userID, id string) (*models.Notification, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	return scanNotification(row)
}

func (s *PostgresNotificationStore) LatestGroup(ctx context.Context, userID, asset string, since time.Time) (string, bool, error) {
	var group string
	err := s.pool.QueryRow(ctx,
		`SELECT group_id FROM notifications
		 WHERE user_id = $1 AND asset_symbol = $2 AND sent_at >= $3
		 ORDER BY sent_at DESC LIMIT 1`, userID, asset, since).Scan(&group)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("latest group: %w", err)
	}
	return group, true, nil
}

func (s *PostgresNotificationStore) MarkRead(ctx context.Context, userID, id string, at time.Time) (*models.Notification, error) {
	if _, err := s.pool.Exec(ctx,
		`UPDATE notifications SET state = 'read', read_at = $3
		 WHERE id = $1 AND user_id = $2 AND state = 'unread'`, id, userID, at); err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return s.Get(ctx, userID, id)
}

func (s *PostgresNotificationStore) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET state = 'read', read_at = $2
		 WHERE user_id = $1 AND state = 'unread'`, userID, at)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresNotificationStore) Archive(ctx context.Context, userID, id string, at time.Time) (*models.Notification, error) {
	if _, err := s.pool.Exec(ctx,
		`UPDATE notifications SET state = 'archived', archived_at = $3, read_at = COALESCE(read_at, $3)
		 WHERE id = $1 AND user_id = $2 AND state <> 'archived'`, id, userID, at); err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	return s.Get(ctx, userID, id)
}

func (s *PostgresNotificationStore) List(ctx context.Context, userID string, q models.NotificationQuery) (*models.NotificationPage, error) {
	filter := `user_id = $1`
	if !q.IncludeArchived {
		filter += ` AND state <> 'archived'`
	}

	page := &models.NotificationPage{Items: make([]models.Notification, 0)}
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FILTER (WHERE `+filter+`), count(*) FILTER (WHERE state = 'unread')
		 FROM notifications WHERE user_id = $1`, userID).Scan(&page.Total, &page.Unread); err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE `+filter+`
		 ORDER BY sent_at DESC, id DESC LIMIT $2 OFFSET $3`, userID, limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return page, nil
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var (
		n                     models.Notification
		kind, priority, state string
	)
	err := row.Scan(&n.ID, &n.OwnerUserID, &n.SignalID, &n.AssetSymbol, &kind, &n.Title, &n.Message,
		&priority, &state, &n.SentAt, &n.ReadAt, &n.ArchivedAt, &n.GroupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	n.Kind = models.Kind(kind)
	n.Priority = models.Priority(priority)
	n.State = models.NotificationState(state)
	return &n, nil
}

type PostgresWatchlistStore struct {
	pool *pgxpool.Pool
}

func NewPostgresWatchlistStore(pool *pgxpool.Pool) *PostgresWatchlistStore {
	return &PostgresWatchlistStore{pool: pool}
}

func (s *PostgresWatchlistStore) Watchers(ctx context.Context, asset string) ([]string, error) {
	return s.strings(ctx, `SELECT user_id FROM watchlists WHERE asset_symbol = $1 ORDER BY user_id`, asset)
}

func (s *PostgresWatchlistStore) List(ctx context.Context, userID string) ([]string, error) {
	return s.strings(ctx, `SELECT asset_symbol FROM watchlists WHERE user_id = $1 ORDER BY asset_symbol`, userID)
}

func (s *PostgresWatchlistStore) Add(ctx context.Context, userID, asset string) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO watchlists (user_id, asset_symbol) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, asset); err != nil {
		return fmt.Errorf("add watchlist: %w", err)
	}
	return nil
}

func (s *PostgresWatchlistStore) Remove(ctx context.Context, userID, asset string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM watchlists WHERE user_id = $1 AND asset_symbol = $2`, userID, asset)
	if err != nil {
		return fmt.Errorf("remove watchlist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PostgresWatchlistStore) strings(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query watchlists: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect watchlists: %w", err)
	}
	return out, nil
}

type PostgresContactStore struct {
	pool *pgxpool.Pool
}

func NewPostgresContactStore(pool *pgxpool.Pool) *PostgresContactStore {
	return &PostgresContactStore{pool: pool}
}

func (s *PostgresContactStore) Get(ctx context.Context, userID string) (*models.Contact, error) {
	c := models.Contact{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT email, telegram_chat_id, updated_at FROM user_contacts WHERE user_id = $1`, userID).
		Scan(&c.Email, &c.TelegramChatID, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &c, nil
}

func (s *PostgresContactStore) Put(ctx context.Context, c *models.Contact) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_contacts (user_id, email, telegram_chat_id, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET email = EXCLUDED.email, telegram_chat_id = EXCLUDED.telegram_chat_id, updated_at = EXCLUDED.updated_at`,
		c.UserID, c.Email, c.TelegramChatID, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put contact: %w", err)
	}
	return nil
}

var (
	_ domrepo.NotificationStore = (*PostgresNotificationStore)(nil)
	_ domrepo.WatchlistStore    = (*PostgresWatchlistStore)(nil)
	_ domrepo.ContactStore      = (*PostgresContactStore)(nil)
)
