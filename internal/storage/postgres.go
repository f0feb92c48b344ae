package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresArchive struct {
	db *sql.DB
}

func NewPostgresArchive(config DatabaseConfig) (*PostgresArchive, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	archive := &PostgresArchive{db: db}

	if err := archive.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return archive, nil
}

func (s *PostgresArchive) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresArchive) SaveTurn(ctx context.Context, turn *Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO transcript_turns (id, chat_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := s.db.ExecContext(ctx, query, turn.ID, turn.ChatID, turn.Role, turn.Content, turn.CreatedAt); err != nil {
		return fmt.Errorf("error saving turn: %v", err)
	}
	return nil
}

func (s *PostgresArchive) RecentTurns(ctx context.Context, chatID int64, limit int) ([]*Turn, error) {
	query := `
		SELECT id, chat_id, role, content, created_at
		FROM transcript_turns
		WHERE chat_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying turns: %v", err)
	}
	defer rows.Close()

	var turns []*Turn
	for rows.Next() {
		turn := &Turn{}
		err := rows.Scan(
			&turn.ID,
			&turn.ChatID,
			&turn.Role,
			&turn.Content,
			&turn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning turn: %v", err)
		}
		turns = append(turns, turn)
	}

	return turns, rows.Err()
}

func (s *PostgresArchive) Close() error {
	return s.db.Close()
}
