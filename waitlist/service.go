package waitlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-bot/events"
	"storefront-bot/metrics"
)

// Repository persists entries. Get on a missing id wraps ErrNotFound.
type Repository interface {
	CreateEntry(ctx context.Context, e Entry) error
	GetEntry(ctx context.Context, id string) (Entry, error)
	UpdateEntry(ctx context.Context, e Entry) error
}

type Service struct {
	repo   Repository
	events events.Publisher
	log    *zap.Logger
	now    func() time.Time

	locksMu sync.Mutex
	locks   map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(repo Repository, pub events.Publisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{repo: repo, events: pub, log: log, now: time.Now, locks: make(map[string]*entryLock)}
}

// lockEntry serializes read-modify-write of one entry.
func (s *Service) lockEntry(id string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &entryLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

// NewEntry is the input to Create.
type NewEntry struct {
	GuildID       string
	ChannelID     string
	CustomerID    string
	Item          string
	PaymentMethod string
	CreatedBy     string
}

// Create stores a pending entry. The message id is attached once the
// rendered message has been sent.
func (s *Service) Create(ctx context.Context, staff bool, in NewEntry) (Entry, error) {
	if !staff {
		return Entry{}, ErrPermissionDenied
	}
	now := s.now().UTC()
	e := Entry{
		ID:            uuid.NewString(),
		GuildID:       in.GuildID,
		ChannelID:     in.ChannelID,
		CustomerID:    in.CustomerID,
		Item:          in.Item,
		PaymentMethod: in.PaymentMethod,
		Status:        StatusPending,
		CreatedBy:     in.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateEntry(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("store waitlist entry: %w", err)
	}
	s.publish(ctx, events.WaitlistCreated, e, in.CreatedBy)
	return e, nil
}

// AttachMessage records where the entry is rendered.
func (s *Service) AttachMessage(ctx context.Context, id, messageID string) error {
	defer s.lockEntry(id)()
	e, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	e.MessageID = messageID
	return s.repo.UpdateEntry(ctx, e)
}

// Select applies a status chosen from the menu and returns the new record.
func (s *Service) Select(ctx context.Context, staff bool, actorID, id, value string) (Entry, error) {
	if !staff {
		return Entry{}, ErrPermissionDenied
	}
	status, err := ParseStatus(value)
	if err != nil {
		return Entry{}, err
	}

	defer s.lockEntry(id)()
	e, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	next, err := Transition(e, status, s.now())
	if err != nil {
		return e, err
	}
	if err := s.repo.UpdateEntry(ctx, next); err != nil {
		return Entry{}, fmt.Errorf("update waitlist entry: %w", err)
	}

	metrics.WaitlistTransitions.WithLabelValues(string(status)).Inc()
	s.log.Info("waitlist status changed",
		zap.String("entry", id),
		zap.String("from", string(e.Status)),
		zap.String("to", string(status)),
		zap.String("by", actorID))
	s.publish(ctx, events.WaitlistStatus, next, actorID)
	return next, nil
}

func (s *Service) publish(ctx context.Context, typ events.Type, e Entry, actorID string) {
	err := s.events.Publish(ctx, events.New(typ, e.GuildID, e.ID, actorID, map[string]any{
		"customer_id": e.CustomerID,
		"item":        e.Item,
		"status":      string(e.Status),
	}))
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("event not published", zap.String("type", string(typ)), zap.Error(err))
	}
}
