package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"storefront-bot/tickets"
	"storefront-bot/waitlist"
)

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	channel_id  TEXT PRIMARY KEY,
	guild_id    TEXT NOT NULL,
	owner_id    TEXT NOT NULL,
	owner_name  TEXT NOT NULL DEFAULT '',
	category_id TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	priority    TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_guild_owner ON tickets(guild_id, owner_id);

CREATE TABLE IF NOT EXISTS ticket_bans (
	guild_id   TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	banned_by  TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (guild_id, user_id)
);

CREATE TABLE IF NOT EXISTS waitlist_entries (
	id             TEXT PRIMARY KEY,
	guild_id       TEXT NOT NULL,
	channel_id     TEXT NOT NULL,
	message_id     TEXT NOT NULL DEFAULT '',
	customer_id    TEXT NOT NULL,
	item           TEXT NOT NULL,
	payment_method TEXT NOT NULL,
	status         TEXT NOT NULL,
	created_by     TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);
`

type SQLiteDB struct {
	Path string
	db   *sql.DB
	log  *zap.Logger
}

func (s *SQLiteDB) Init() error {
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return fmt.Errorf("sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return fmt.Errorf("sqlite open: %w", err)
	}
	// one writer at a time avoids SQLITE_BUSY between handler goroutines
	db.SetMaxOpenConns(1)
	s.db = db

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite schema: %w", err)
	}
	s.log.Info("sqlite initialised", zap.String("path", s.Path))
	return nil
}

func (s *SQLiteDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func (s *SQLiteDB) CreateTicket(ctx context.Context, t tickets.Ticket) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (channel_id, guild_id, owner_id, owner_name, category_id, status, priority, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ChannelID, t.GuildID, t.OwnerID, t.OwnerName, t.CategoryID, string(t.Status), string(t.Priority),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	return err
}

const ticketColumns = `channel_id, guild_id, owner_id, owner_name, category_id, status, priority, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(row scanner) (tickets.Ticket, error) {
	var (
		t                    tickets.Ticket
		status, priority     string
		createdAt, updatedAt string
	)
	if err := row.Scan(&t.ChannelID, &t.GuildID, &t.OwnerID, &t.OwnerName, &t.CategoryID,
		&status, &priority, &createdAt, &updatedAt); err != nil {
		return tickets.Ticket{}, err
	}
	t.Status = tickets.Status(status)
	t.Priority = tickets.Priority(priority)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func ticketNotFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, tickets.ErrNotFound)
	}
	return err
}

func (s *SQLiteDB) GetTicket(ctx context.Context, channelID string) (tickets.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE channel_id = ?`, channelID)
	t, err := scanTicket(row)
	if err != nil {
		return tickets.Ticket{}, ticketNotFound(err, "ticket "+channelID)
	}
	return t, nil
}

func (s *SQLiteDB) FindTicketByOwner(ctx context.Context, guildID, ownerID string) (tickets.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE guild_id = ? AND owner_id = ?`, guildID, ownerID)
	t, err := scanTicket(row)
	if err != nil {
		return tickets.Ticket{}, ticketNotFound(err, "ticket for owner "+ownerID)
	}
	return t, nil
}

func (s *SQLiteDB) ListTickets(ctx context.Context, guildID string) ([]tickets.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE guild_id = ? ORDER BY created_at`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tickets.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) UpdateTicket(ctx context.Context, t tickets.Ticket) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET owner_name = ?, category_id = ?, status = ?, priority = ?, updated_at = ? WHERE channel_id = ?`,
		t.OwnerName, t.CategoryID, string(t.Status), string(t.Priority), formatTime(t.UpdatedAt), t.ChannelID,
	)
	if err != nil {
		return err
	}
	return requireRow(res, "ticket "+t.ChannelID, tickets.ErrNotFound)
}

func (s *SQLiteDB) DeleteTicket(ctx context.Context, channelID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tickets WHERE channel_id = ?`, channelID)
	if err != nil {
		return err
	}
	return requireRow(res, "ticket "+channelID, tickets.ErrNotFound)
}

func (s *SQLiteDB) PutBan(ctx context.Context, b tickets.Ban) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ticket_bans (guild_id, user_id, banned_by, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(guild_id, user_id) DO UPDATE SET banned_by = excluded.banned_by, created_at = excluded.created_at`,
		b.GuildID, b.UserID, b.BannedBy, formatTime(b.CreatedAt),
	)
	return err
}

func (s *SQLiteDB) GetBan(ctx context.Context, guildID, userID string) (tickets.Ban, error) {
	var (
		b         tickets.Ban
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT guild_id, user_id, banned_by, created_at FROM ticket_bans WHERE guild_id = ? AND user_id = ?`,
		guildID, userID,
	).Scan(&b.GuildID, &b.UserID, &b.BannedBy, &createdAt)
	if err != nil {
		return tickets.Ban{}, ticketNotFound(err, "ban for "+userID)
	}
	b.CreatedAt = parseTime(createdAt)
	return b, nil
}

func (s *SQLiteDB) DeleteBan(ctx context.Context, guildID, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ticket_bans WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	if err != nil {
		return err
	}
	return requireRow(res, "ban for "+userID, tickets.ErrNotFound)
}

func (s *SQLiteDB) CreateEntry(ctx context.Context, e waitlist.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO waitlist_entries (id, guild_id, channel_id, message_id, customer_id, item, payment_method, status, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.GuildID, e.ChannelID, e.MessageID, e.CustomerID, e.Item, e.PaymentMethod, string(e.Status),
		e.CreatedBy, formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	return err
}

func (s *SQLiteDB) GetEntry(ctx context.Context, id string) (waitlist.Entry, error) {
	var (
		e                    waitlist.Entry
		status               string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, guild_id, channel_id, message_id, customer_id, item, payment_method, status, created_by, created_at, updated_at
		 FROM waitlist_entries WHERE id = ?`, id,
	).Scan(&e.ID, &e.GuildID, &e.ChannelID, &e.MessageID, &e.CustomerID, &e.Item, &e.PaymentMethod,
		&status, &e.CreatedBy, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return waitlist.Entry{}, fmt.Errorf("entry %s: %w", id, waitlist.ErrNotFound)
	}
	if err != nil {
		return waitlist.Entry{}, err
	}
	e.Status = waitlist.Status(status)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

func (s *SQLiteDB) UpdateEntry(ctx context.Context, e waitlist.Entry) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE waitlist_entries SET message_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		e.MessageID, string(e.Status), formatTime(e.UpdatedAt), e.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res, "entry "+e.ID, waitlist.ErrNotFound)
}

func requireRow(res sql.Result, what string, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, notFound)
	}
	return nil
}
