// Package db persists chat sessions and their message history in Postgres
// via bun. Citations ride along as a jsonb column on messages, one array per
// assistant turn; no separate table needed at this scale.
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/roeisharon/MedAI/internal/config"
	"github.com/roeisharon/MedAI/internal/errs"
	"github.com/roeisharon/MedAI/internal/models"
)

type Chat struct {
	bun.BaseModel `bun:"table:chats,alias:c"`

	ID        string    `bun:"id,pk" json:"id"`
	Title     string    `bun:"title,notnull" json:"title"`
	LeafletID string    `bun:"leaflet_id,notnull" json:"leaflet_id"`
	Filename  string    `bun:"filename,notnull" json:"filename"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

type Message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID        string            `bun:"id,pk" json:"id"`
	ChatID    string            `bun:"chat_id,notnull" json:"chat_id"`
	Role      string            `bun:"role,notnull" json:"role"`
	Content   string            `bun:"content,notnull" json:"content"`
	Citations []models.Citation `bun:"citations,type:jsonb" json:"citations"`
	CreatedAt time.Time         `bun:"created_at,notnull" json:"created_at"`
}

// Store owns the bun connection and exposes the chat/message operations the
// rest of the application consumes.
type Store struct {
	db *bun.DB
}

func Connect(cfg *config.DatabaseConfig) *Store {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithPassword(cfg.Password),
	))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: db}
}

// NewStore wraps an existing bun.DB; used by tests.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Init creates the schema if missing. Safe to call on every startup.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*Chat)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}
	if _, err := s.db.NewCreateTable().
		Model((*Message)(nil)).
		IfNotExists().
		ForeignKey(`("chat_id") REFERENCES "chats" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return err
	}
	_, err := s.db.NewCreateIndex().
		Model((*Message)(nil)).
		Index("idx_messages_chat_id").
		IfNotExists().
		Column("chat_id").
		Exec(ctx)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

// CreateChat inserts a new chat session. Title defaults to the filename.
func (s *Store) CreateChat(ctx context.Context, leafletID, filename, title string) (*Chat, error) {
	if title == "" {
		title = "Leaflet: " + filename
	}
	now := time.Now().UTC()
	chat := &Chat{
		ID:        uuid.NewString(),
		Title:     title,
		LeafletID: leafletID,
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.NewInsert().Model(chat).Exec(ctx); err != nil {
		return nil, errs.Wrap(errs.KindInternal, err)
	}
	return chat, nil
}

func (s *Store) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	chat := new(Chat)
	err := s.db.NewSelect().Model(chat).Where("c.id = ?", chatID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.Newf(errs.KindChatNotFound, "chat_id=%s", chatID)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err)
	}
	return chat, nil
}

// ListChats returns all chats, most recently active first.
func (s *Store) ListChats(ctx context.Context) ([]Chat, error) {
	var chats []Chat
	if err := s.db.NewSelect().Model(&chats).OrderExpr("updated_at DESC").Scan(ctx); err != nil {
		return nil, errs.Wrap(errs.KindInternal, err)
	}
	return chats, nil
}

func (s *Store) UpdateChatTitle(ctx context.Context, chatID, title string) (*Chat, error) {
	res, err := s.db.NewUpdate().
		Model((*Chat)(nil)).
		Set("title = ?", title).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", chatID).
		Exec(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errs.Newf(errs.KindChatNotFound, "chat_id=%s", chatID)
	}
	return s.GetChat(ctx, chatID)
}

// DeleteChat removes the chat; its messages cascade. Returns whether a row
// was deleted.
func (s *Store) DeleteChat(ctx context.Context, chatID string) (bool, error) {
	res, err := s.db.NewDelete().Model((*Chat)(nil)).Where("id = ?", chatID).Exec(ctx)
	if err != nil {
		return false, errs.Wrap(errs.KindInternal, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CountChatsForLeaflet counts chats referencing the leaflet, excluding one
// chat id. Used to decide whether a leaflet's vectors are still referenced.
func (s *Store) CountChatsForLeaflet(ctx context.Context, leafletID, excludeChatID string) (int, error) {
	n, err := s.db.NewSelect().
		Model((*Chat)(nil)).
		Where("leaflet_id = ?", leafletID).
		Where("id != ?", excludeChatID).
		Count(ctx)
	if err != nil {
		return 0, errs.Wrap(errs.KindInternal, err)
	}
	return n, nil
}

// AddMessage appends one turn and bumps the parent chat's updated_at so chat
// lists sort by recent activity.
func (s *Store) AddMessage(ctx context.Context, chatID, role, content string, citations []models.Citation) (*Message, error) {
	if citations == nil {
		citations = []models.Citation{}
	}
	msg := &Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		Citations: citations,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(msg).Exec(ctx); err != nil {
		return nil, errs.Wrap(errs.KindInternal, err)
	}
	if _, err := s.db.NewUpdate().
		Model((*Chat)(nil)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", chatID).
		Exec(ctx); err != nil {
		return nil, errs.Wrap(errs.KindInternal, err)
	}
	return msg, nil
}

// GetMessages returns the full history of a chat, oldest first.
func (s *Store) GetMessages(ctx context.Context, chatID string) ([]Message, error) {
	var messages []Message
	err := s.db.NewSelect().
		Model(&messages).
		Where("chat_id = ?", chatID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err)
	}
	return messages, nil
}

// HistoryForModel is the slim role+content view fed to the language model.
// Citations are for the UI, not the model.
func (s *Store) HistoryForModel(ctx context.Context, chatID string) ([]models.Turn, error) {
	messages, err := s.GetMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	turns := make([]models.Turn, len(messages))
	for i, m := range messages {
		turns[i] = models.Turn{Role: m.Role, Content: m.Content}
	}
	return turns, nil
}
