package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"storefront-bot/tickets"
	"storefront-bot/waitlist"
)

type MongoDB struct {
	URI    string
	DBName string
	log    *zap.Logger

	client  *mongo.Client
	tickets *mongo.Collection
	bans    *mongo.Collection
	entries *mongo.Collection
}

func (m *MongoDB) Init() error {
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.URI == "" || m.DBName == "" {
		return fmt.Errorf("database.mongodb.uri and database.mongodb.database must be set to use driver=mongodb")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(m.URI))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	m.client = client

	db := client.Database(m.DBName)
	m.tickets = db.Collection("tickets")
	m.bans = db.Collection("ticket_bans")
	m.entries = db.Collection("waitlist_entries")

	if _, err := m.tickets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "guild_id", Value: 1}, {Key: "owner_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("mongo tickets index: %w", err)
	}
	if _, err := m.bans.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "guild_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("mongo bans index: %w", err)
	}

	m.log.Info("mongodb initialised", zap.String("database", m.DBName))
	return nil
}

func (m *MongoDB) Close() error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func mongoMiss(err error, what string, notFound error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", what, notFound)
	}
	return err
}

func (m *MongoDB) CreateTicket(ctx context.Context, t tickets.Ticket) error {
	_, err := m.tickets.InsertOne(ctx, t)
	return err
}

func (m *MongoDB) GetTicket(ctx context.Context, channelID string) (tickets.Ticket, error) {
	var t tickets.Ticket
	err := m.tickets.FindOne(ctx, bson.M{"_id": channelID}).Decode(&t)
	if err != nil {
		return tickets.Ticket{}, mongoMiss(err, "ticket "+channelID, tickets.ErrNotFound)
	}
	return t, nil
}

func (m *MongoDB) FindTicketByOwner(ctx context.Context, guildID, ownerID string) (tickets.Ticket, error) {
	var t tickets.Ticket
	err := m.tickets.FindOne(ctx, bson.M{"guild_id": guildID, "owner_id": ownerID}).Decode(&t)
	if err != nil {
		return tickets.Ticket{}, mongoMiss(err, "ticket for owner "+ownerID, tickets.ErrNotFound)
	}
	return t, nil
}

func (m *MongoDB) ListTickets(ctx context.Context, guildID string) ([]tickets.Ticket, error) {
	cursor, err := m.tickets.Find(ctx, bson.M{"guild_id": guildID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []tickets.Ticket
	return out, cursor.All(ctx, &out)
}

func (m *MongoDB) UpdateTicket(ctx context.Context, t tickets.Ticket) error {
	res, err := m.tickets.ReplaceOne(ctx, bson.M{"_id": t.ChannelID}, t)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("ticket %s: %w", t.ChannelID, tickets.ErrNotFound)
	}
	return nil
}

func (m *MongoDB) DeleteTicket(ctx context.Context, channelID string) error {
	res, err := m.tickets.DeleteOne(ctx, bson.M{"_id": channelID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("ticket %s: %w", channelID, tickets.ErrNotFound)
	}
	return nil
}

func (m *MongoDB) PutBan(ctx context.Context, b tickets.Ban) error {
	_, err := m.bans.ReplaceOne(ctx,
		bson.M{"guild_id": b.GuildID, "user_id": b.UserID},
		b,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (m *MongoDB) GetBan(ctx context.Context, guildID, userID string) (tickets.Ban, error) {
	var b tickets.Ban
	err := m.bans.FindOne(ctx, bson.M{"guild_id": guildID, "user_id": userID}).Decode(&b)
	if err != nil {
		return tickets.Ban{}, mongoMiss(err, "ban for "+userID, tickets.ErrNotFound)
	}
	return b, nil
}

func (m *MongoDB) DeleteBan(ctx context.Context, guildID, userID string) error {
	res, err := m.bans.DeleteOne(ctx, bson.M{"guild_id": guildID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("ban for %s: %w", userID, tickets.ErrNotFound)
	}
	return nil
}

func (m *MongoDB) CreateEntry(ctx context.Context, e waitlist.Entry) error {
	_, err := m.entries.InsertOne(ctx, e)
	return err
}

func (m *MongoDB) GetEntry(ctx context.Context, id string) (waitlist.Entry, error) {
	var e waitlist.Entry
	err := m.entries.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if err != nil {
		return waitlist.Entry{}, mongoMiss(err, "entry "+id, waitlist.ErrNotFound)
	}
	return e, nil
}

func (m *MongoDB) UpdateEntry(ctx context.Context, e waitlist.Entry) error {
	res, err := m.entries.ReplaceOne(ctx, bson.M{"_id": e.ID}, e)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("entry %s: %w", e.ID, waitlist.ErrNotFound)
	}
	return nil
}
