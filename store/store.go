package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

// ChatActivity is one row of the per-cycle activity snapshot.
type ChatActivity struct {
	ChatID int64
	Count  int64
}

func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite":
		dsn, err := ResolveSQLiteDSN(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("resolve sqlite dsn: %w", err)
		}
		if cfg.SQLite.BusyTimeoutMs > 0 && !strings.Contains(dsn, "_busy_timeout") {
			dsn = fmt.Sprintf("%s?_busy_timeout=%d", dsn, cfg.SQLite.BusyTimeoutMs)
			if cfg.SQLite.WAL {
				dsn += "&_journal_mode=WAL"
			}
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	}

	s := &Store{db: gdb}
	if cfg.AutoMigrate {
		if err := gdb.AutoMigrate(&Message{}); err != nil {
			return nil, fmt.Errorf("migrate store: %w", err)
		}
	}
	return s, nil
}

// NewWithDB wraps an already-open gorm handle. Used by tests.
func NewWithDB(gdb *gorm.DB) (*Store, error) {
	if gdb == nil {
		return nil, fmt.Errorf("nil gorm db")
	}
	if err := gdb.AutoMigrate(&Message{}); err != nil {
		return nil, err
	}
	return &Store{db: gdb}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Upsert inserts a message or, when the same (chat, message id) identity
// already exists, overwrites it with the latest content. Last write wins.
func (s *Store) Upsert(ctx context.Context, m Message) error {
	if m.ID == "" {
		m.ID = MessageKey(m.ChatID, m.MessageID)
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("failed to upsert message: %w", err)
	}
	return nil
}

// QuerySince returns a chat's messages with timestamp >= sinceMillis,
// ascending by timestamp.
func (s *Store) QuerySince(ctx context.Context, chatID, sinceMillis int64) ([]Message, error) {
	var out []Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND timestamp >= ?", chatID, sinceMillis).
		Order("timestamp asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query messages since: %w", err)
	}
	return out, nil
}

// QueryLatestN returns the most recent n messages of a chat, descending by
// timestamp. Callers that need chronological order re-sort.
func (s *Store) QueryLatestN(ctx context.Context, chatID int64, n int) ([]Message, error) {
	var out []Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("timestamp desc").
		Limit(n).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query latest messages: %w", err)
	}
	return out, nil
}

// QueryGlob searches a chat's messages by glob pattern (* and ?), most
// recent first, capped at limit rows.
func (s *Store) QueryGlob(ctx context.Context, chatID int64, pattern string, limit int) ([]Message, error) {
	var out []Message
	err := s.db.WithContext(ctx).
		Where(`chat_id = ? AND content LIKE ? ESCAPE '\'`, chatID, globToLike(pattern)).
		Order("timestamp desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query messages by pattern: %w", err)
	}
	return out, nil
}

// DeleteExceptLatestN retains, per chat, only the n most recent messages by
// timestamp and deletes the rest.
func (s *Store) DeleteExceptLatestN(ctx context.Context, n int) error {
	err := s.db.WithContext(ctx).Exec(`
		DELETE FROM messages
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY chat_id ORDER BY timestamp DESC) AS row_num
				FROM messages
			) ranked
			WHERE row_num > ?
		)`, n).Error
	if err != nil {
		return fmt.Errorf("failed to prune messages: %w", err)
	}
	return nil
}

// ListActiveChats returns chats with more than minCount messages since
// sinceMillis, ordered by message count descending.
func (s *Store) ListActiveChats(ctx context.Context, sinceMillis int64, minCount int) ([]ChatActivity, error) {
	var out []ChatActivity
	err := s.db.WithContext(ctx).
		Model(&Message{}).
		Select("chat_id, COUNT(*) AS count").
		Where("timestamp >= ?", sinceMillis).
		Group("chat_id").
		Having("COUNT(*) > ?", minCount).
		Order("count desc").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active chats: %w", err)
	}
	return out, nil
}

func globToLike(pattern string) string {
	r := strings.NewReplacer(
		`%`, `\%`,
		`_`, `\_`,
		`*`, `%`,
		`?`, `_`,
	)
	return r.Replace(pattern)
}
