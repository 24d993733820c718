package relationship

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/mossy-p/voice-signaling/internal/models"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS match_connections (
	id TEXT PRIMARY KEY,
	requester_id TEXT NOT NULL,
	accepter_id TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_match_connections_requester ON match_connections(requester_id);
CREATE INDEX IF NOT EXISTS idx_match_connections_accepter ON match_connections(accepter_id);
CREATE TABLE IF NOT EXISTS connection_requests (
	id TEXT PRIMARY KEY,
	sender_id TEXT NOT NULL,
	receiver_id TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_connection_requests_sender ON connection_requests(sender_id);
CREATE INDEX IF NOT EXISTS idx_connection_requests_receiver ON connection_requests(receiver_id);
`

// SQLStore reads relationships from the application database. It speaks the
// sqlite and postgres dialects.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQL opens the relationship database. driver is "sqlite" or "postgres".
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "sqlite":
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("unsupported relationship driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Migrate creates the relationship tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) CreateConnection(ctx context.Context, requesterID, accepterID, status string) (models.MatchConnection, error) {
	c := models.MatchConnection{
		ID:          uuid.New().String(),
		RequesterID: requesterID,
		AccepterID:  accepterID,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO match_connections (id, requester_id, accepter_id, status, created_at) VALUES (?, ?, ?, ?, ?)`),
		c.ID, c.RequesterID, c.AccepterID, c.Status, c.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return models.MatchConnection{}, fmt.Errorf("insert connection: %w", err)
	}
	return c, nil
}

func (s *SQLStore) CreateRequest(ctx context.Context, senderID, receiverID, status string) (models.ConnectionRequest, error) {
	r := models.ConnectionRequest{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO connection_requests (id, sender_id, receiver_id, status, created_at) VALUES (?, ?, ?, ?, ?)`),
		r.ID, r.SenderID, r.ReceiverID, r.Status, r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return models.ConnectionRequest{}, fmt.Errorf("insert request: %w", err)
	}
	return r, nil
}

func (s *SQLStore) SetConnectionStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE match_connections SET status = ? WHERE id = ?`), status, id)
	return err
}

func (s *SQLStore) SetRequestStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE connection_requests SET status = ? WHERE id = ?`), status, id)
	return err
}

func (s *SQLStore) ConnectionsForUser(ctx context.Context, userID string) ([]models.MatchConnection, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, requester_id, accepter_id, status, created_at FROM match_connections WHERE requester_id = ? OR accepter_id = ?`),
		userID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []models.MatchConnection
	for rows.Next() {
		var c models.MatchConnection
		var createdStr string
		if err := rows.Scan(&c.ID, &c.RequesterID, &c.AccepterID, &c.Status, &createdStr); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdStr)
		res = append(res, c)
	}
	return res, rows.Err()
}

func (s *SQLStore) RequestsForUser(ctx context.Context, userID string) ([]models.ConnectionRequest, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, sender_id, receiver_id, status, created_at FROM connection_requests WHERE sender_id = ? OR receiver_id = ?`),
		userID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []models.ConnectionRequest
	for rows.Next() {
		var r models.ConnectionRequest
		var createdStr string
		if err := rows.Scan(&r.ID, &r.SenderID, &r.ReceiverID, &r.Status, &createdStr); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdStr)
		res = append(res, r)
	}
	return res, rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
