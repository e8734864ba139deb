package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"storefront-bot/config"
	"storefront-bot/tickets"
	"storefront-bot/waitlist"
)

func newTestDB(t *testing.T) Database {
	t.Helper()
	cfg := &config.DatabaseConfig{Driver: "sqlite"}
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "nested", "bot.db")
	db, err := InitDB(cfg, nil)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitDB_UnknownDriver(t *testing.T) {
	if _, err := InitDB(&config.DatabaseConfig{Driver: "postgres"}, nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestSQLite_Tickets(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	created := time.Date(2025, 2, 3, 4, 5, 6, 7000, time.UTC)

	tk := tickets.Ticket{
		ChannelID: "C1", GuildID: "G", OwnerID: "U1", OwnerName: "amy", CategoryID: "CAT",
		Status: tickets.StatusOpen, CreatedAt: created, UpdatedAt: created,
	}
	if err := db.CreateTicket(ctx, tk); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if err := db.CreateTicket(ctx, tickets.Ticket{ChannelID: "C2", GuildID: "G", OwnerID: "U1", Status: tickets.StatusOpen}); err == nil {
		t.Fatal("second ticket for the same owner accepted")
	}

	got, err := db.GetTicket(ctx, "C1")
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if got.OwnerID != "U1" || got.Status != tickets.StatusOpen || !got.CreatedAt.Equal(created) {
		t.Fatalf("GetTicket = %+v", got)
	}
	if _, err := db.FindTicketByOwner(ctx, "G", "U1"); err != nil {
		t.Fatalf("FindTicketByOwner: %v", err)
	}
	if _, err := db.FindTicketByOwner(ctx, "G", "U2"); !errors.Is(err, tickets.ErrNotFound) {
		t.Fatalf("missing owner err = %v", err)
	}

	got.Status = tickets.StatusLocked
	got.Priority = tickets.PriorityHigh
	if err := db.UpdateTicket(ctx, got); err != nil {
		t.Fatalf("UpdateTicket: %v", err)
	}
	list, err := db.ListTickets(ctx, "G")
	if err != nil || len(list) != 1 || list[0].Priority != tickets.PriorityHigh || list[0].Status != tickets.StatusLocked {
		t.Fatalf("ListTickets = %+v, %v", list, err)
	}

	if err := db.DeleteTicket(ctx, "C1"); err != nil {
		t.Fatalf("DeleteTicket: %v", err)
	}
	if _, err := db.GetTicket(ctx, "C1"); !errors.Is(err, tickets.ErrNotFound) {
		t.Fatalf("get after delete err = %v", err)
	}
	if err := db.UpdateTicket(ctx, got); !errors.Is(err, tickets.ErrNotFound) {
		t.Fatalf("update after delete err = %v", err)
	}
}

func TestSQLite_Bans(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.GetBan(ctx, "G", "U1"); !errors.Is(err, tickets.ErrNotFound) {
		t.Fatalf("GetBan before put err = %v", err)
	}
	b := tickets.Ban{GuildID: "G", UserID: "U1", BannedBy: "S1", CreatedAt: time.Now()}
	if err := db.PutBan(ctx, b); err != nil {
		t.Fatal(err)
	}
	b.BannedBy = "S2"
	if err := db.PutBan(ctx, b); err != nil {
		t.Fatalf("re-ban: %v", err)
	}
	got, err := db.GetBan(ctx, "G", "U1")
	if err != nil || got.BannedBy != "S2" {
		t.Fatalf("GetBan = %+v, %v", got, err)
	}
	if err := db.DeleteBan(ctx, "G", "U1"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteBan(ctx, "G", "U1"); !errors.Is(err, tickets.ErrNotFound) {
		t.Fatalf("second DeleteBan err = %v", err)
	}
}

func TestSQLite_Waitlist(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	e := waitlist.Entry{
		ID: "e1", GuildID: "G", ChannelID: "WL", CustomerID: "U1", Item: "icon",
		PaymentMethod: "nitro", Status: waitlist.StatusPending, CreatedBy: "S1", CreatedAt: now, UpdatedAt: now,
	}
	if err := db.CreateEntry(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.MessageID = "M1"
	e.Status = waitlist.StatusPaid
	if err := db.UpdateEntry(ctx, e); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetEntry(ctx, "e1")
	if err != nil {
		t.Fatal(err)
	}
	if got.MessageID != "M1" || got.Status != waitlist.StatusPaid || got.Item != "icon" || !got.CreatedAt.Equal(now) {
		t.Fatalf("GetEntry = %+v", got)
	}
	if _, err := db.GetEntry(ctx, "nope"); !errors.Is(err, waitlist.ErrNotFound) {
		t.Fatalf("missing entry err = %v", err)
	}
}
