package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/sweetpotato0/genui/conversation"
	genuierrors "github.com/sweetpotato0/genui/errors"
	"github.com/sweetpotato0/genui/message"
)

// PostgresStore persists conversation states in a PostgreSQL table with the
// message list stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig holds PostgreSQL connection configuration. DSN, when set,
// takes precedence over the individual fields.
type PostgresConfig struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultPostgresConfig returns the default PostgreSQL configuration.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		DBName:   "genui",
		SSLMode:  "disable",
	}
}

func (c *PostgresConfig) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// NewPostgresStore connects to PostgreSQL and creates the table if needed.
func NewPostgresStore(ctx context.Context, config *PostgresConfig) (*PostgresStore, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}

	db, err := sql.Open("postgres", config.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) createTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS genui_conversations (
		id VARCHAR(255) PRIMARY KEY,
		messages JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_genui_conversations_updated_at ON genui_conversations(updated_at);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Save implements conversation.Repository.
func (s *PostgresStore) Save(ctx context.Context, state conversation.State) error {
	if state.ID == "" {
		return fmt.Errorf("conversation id cannot be empty: %w", genuierrors.ErrInvalidInput)
	}

	messagesJSON, err := json.Marshal(state.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	query := `
	INSERT INTO genui_conversations (id, messages, updated_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET
		messages = EXCLUDED.messages,
		updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, state.ID, string(messagesJSON), state.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save conversation to PostgreSQL: %w", err)
	}
	return nil
}

// Load implements conversation.Repository.
func (s *PostgresStore) Load(ctx context.Context, id string) (conversation.State, error) {
	state := conversation.State{ID: id}
	var messagesJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT messages, updated_at FROM genui_conversations WHERE id = $1`, id).
		Scan(&messagesJSON, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return conversation.State{}, fmt.Errorf("conversation %s: %w", id, genuierrors.ErrNotFound)
		}
		return conversation.State{}, fmt.Errorf("failed to load conversation: %w", err)
	}

	var msgs []*message.Message
	if err := json.Unmarshal([]byte(messagesJSON), &msgs); err != nil {
		return conversation.State{}, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	state.Messages = msgs
	return state, nil
}

// Delete implements conversation.Repository.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM genui_conversations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// List implements conversation.Repository, most recently updated first.
func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM genui_conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}
	return ids, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
