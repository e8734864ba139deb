package tickets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront-bot/events"
	"storefront-bot/metrics"
	"storefront-bot/transcript"
)

type Config struct {
	StaffRole       string
	LogChannel      string
	ArchiveCategory string
	CloseDelay      time.Duration
	PageSize        int
}

type Service struct {
	cfg       Config
	repo      Repository
	platform  Platform
	events    events.Publisher
	scheduler *Scheduler
	log       *zap.Logger
	now       func() time.Time

	locksMu sync.Mutex
	locks   map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(cfg Config, repo Repository, platform Platform, pub events.Publisher, sched *Scheduler, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	if sched == nil {
		sched = NewScheduler()
	}
	if cfg.CloseDelay <= 0 {
		cfg.CloseDelay = 3 * time.Second
	}
	return &Service{
		cfg:       cfg,
		repo:      repo,
		platform:  platform,
		events:    pub,
		scheduler: sched,
		log:       log,
		now:       time.Now,
		locks:     make(map[string]*keyLock),
	}
}

// lockOwner serializes create for one (guild, owner) pair.
func (s *Service) lockOwner(guildID, ownerID string) func() {
	return s.lockKey("owner/" + guildID + "/" + ownerID)
}

// lockChannel serializes read-modify-write of one ticket record.
func (s *Service) lockChannel(channelID string) func() {
	return s.lockKey("channel/" + channelID)
}

func (s *Service) lockKey(key string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.locksMu.Unlock()
	}
}

func external(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrExternalCall, err)
}

// Create opens a ticket channel for the actor under categoryID. Nothing is
// allocated when the actor is banned or already has a ticket.
func (s *Service) Create(ctx context.Context, actor Actor, guildID, categoryID string) (Ticket, error) {
	unlock := s.lockOwner(guildID, actor.ID)
	defer unlock()

	if _, err := s.repo.GetBan(ctx, guildID, actor.ID); err == nil {
		return Ticket{}, ErrBanned
	} else if !errors.Is(err, ErrNotFound) {
		return Ticket{}, external("get ban", err)
	}

	if _, err := s.repo.FindTicketByOwner(ctx, guildID, actor.ID); err == nil {
		return Ticket{}, ErrDuplicateTicket
	} else if !errors.Is(err, ErrNotFound) {
		return Ticket{}, external("find ticket", err)
	}

	name := ChannelName(actor.Name)
	exists, err := s.platform.ChannelExists(ctx, guildID, name)
	if err != nil {
		return Ticket{}, external("lookup channel", err)
	}
	if exists {
		return Ticket{}, ErrDuplicateTicket
	}

	now := s.now().UTC()
	t := Ticket{
		GuildID:    guildID,
		OwnerID:    actor.ID,
		OwnerName:  actor.Name,
		CategoryID: categoryID,
		Status:     StatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	channelID, err := s.platform.CreateChannel(ctx, ChannelSpec{
		GuildID:    guildID,
		Name:       name,
		CategoryID: categoryID,
		Topic:      t.Topic(),
		OwnerID:    actor.ID,
		StaffRole:  s.cfg.StaffRole,
	})
	if err != nil {
		return Ticket{}, external("create channel", err)
	}
	t.ChannelID = channelID

	if err := s.repo.CreateTicket(ctx, t); err != nil {
		if derr := s.platform.DeleteChannel(ctx, channelID); derr != nil {
			s.log.Warn("orphan ticket channel", zap.String("channel", channelID), zap.Error(derr))
		}
		return Ticket{}, external("store ticket", err)
	}

	if err := s.platform.PostPanel(ctx, t); err != nil {
		s.log.Warn("ticket panel not posted", zap.String("channel", channelID), zap.Error(err))
	}

	metrics.TicketsOpened.Inc()
	s.publish(ctx, events.TicketCreated, t, actor, map[string]any{"category_id": categoryID})
	s.log.Info("ticket created",
		zap.String("guild", guildID),
		zap.String("channel", channelID),
		zap.String("owner", actor.ID))
	return t, nil
}

// staffTicket checks the actor and loads the ticket for channelID.
func (s *Service) staffTicket(ctx context.Context, actor Actor, channelID string) (Ticket, error) {
	if !actor.Staff {
		return Ticket{}, ErrPermissionDenied
	}
	t, err := s.repo.GetTicket(ctx, channelID)
	if errors.Is(err, ErrNotFound) {
		return Ticket{}, ErrOwnerNotResolvable
	}
	if err != nil {
		return Ticket{}, external("get ticket", err)
	}
	return t, nil
}

// Resolve returns the ticket for channelID on behalf of a staff actor.
func (s *Service) Resolve(ctx context.Context, actor Actor, channelID string) (Ticket, error) {
	return s.staffTicket(ctx, actor, channelID)
}

func (s *Service) activeTicket(ctx context.Context, actor Actor, channelID string) (Ticket, error) {
	t, err := s.staffTicket(ctx, actor, channelID)
	if err != nil {
		return Ticket{}, err
	}
	if t.Status.Terminal() {
		return Ticket{}, fmt.Errorf("%w: ticket is %s", ErrInvalidTransition, t.Status)
	}
	return t, nil
}

func (s *Service) save(ctx context.Context, t Ticket) (Ticket, error) {
	t.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateTicket(ctx, t); err != nil {
		return Ticket{}, external("update ticket", err)
	}
	return t, nil
}

// Lock revokes the owner's send permission. Locking a locked ticket
// succeeds without changes.
func (s *Service) Lock(ctx context.Context, actor Actor, channelID string) (Ticket, error) {
	defer s.lockChannel(channelID)()
	t, err := s.activeTicket(ctx, actor, channelID)
	if err != nil {
		return Ticket{}, err
	}
	if t.Status == StatusLocked {
		return t, nil
	}
	if err := s.platform.SetMemberAccess(ctx, channelID, t.OwnerID, AccessReadOnly); err != nil {
		return Ticket{}, external("revoke send", err)
	}
	t.Status = StatusLocked
	if t, err = s.save(ctx, t); err != nil {
		return Ticket{}, err
	}
	s.action(ctx, events.TicketLocked, "lock", t, actor, nil)
	return t, nil
}

// Unlock restores the owner's send permission.
func (s *Service) Unlock(ctx context.Context, actor Actor, channelID string) (Ticket, error) {
	defer s.lockChannel(channelID)()
	t, err := s.activeTicket(ctx, actor, channelID)
	if err != nil {
		return Ticket{}, err
	}
	if t.Status == StatusOpen {
		return t, nil
	}
	if err := s.platform.SetMemberAccess(ctx, channelID, t.OwnerID, AccessFull); err != nil {
		return Ticket{}, external("restore send", err)
	}
	t.Status = StatusOpen
	if t, err = s.save(ctx, t); err != nil {
		return Ticket{}, err
	}
	s.action(ctx, events.TicketUnlocked, "unlock", t, actor, nil)
	return t, nil
}

// Ban records a ticket ban for the owner and leaves the ticket in the
// terminal Banned state. The channel is kept for staff to close.
func (s *Service) Ban(ctx context.Context, actor Actor, channelID string) (Ticket, error) {
	defer s.lockChannel(channelID)()
	t, err := s.activeTicket(ctx, actor, channelID)
	if err != nil {
		return Ticket{}, err
	}
	if err := s.repo.PutBan(ctx, Ban{
		GuildID:   t.GuildID,
		UserID:    t.OwnerID,
		BannedBy:  actor.ID,
		CreatedAt: s.now().UTC(),
	}); err != nil {
		return Ticket{}, external("store ban", err)
	}
	t.Status = StatusBanned
	if t, err = s.save(ctx, t); err != nil {
		return Ticket{}, err
	}
	if err := s.platform.SetMemberAccess(ctx, channelID, t.OwnerID, AccessReadOnly); err != nil {
		s.log.Warn("banned owner keeps send permission", zap.String("channel", channelID), zap.Error(err))
	}
	s.action(ctx, events.TicketBanned, "ban", t, actor, nil)
	return t, nil
}

// Unban lifts a ticket ban.
func (s *Service) Unban(ctx context.Context, actor Actor, guildID, userID string) error {
	if !actor.Staff {
		return ErrPermissionDenied
	}
	err := s.repo.DeleteBan(ctx, guildID, userID)
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil {
		return external("delete ban", err)
	}
	metrics.TicketActions.WithLabelValues("unban").Inc()
	s.log.Info("ticket ban lifted", zap.String("guild", guildID), zap.String("user", userID), zap.String("by", actor.ID))
	return nil
}

// IsBanned reports whether userID may not open tickets in guildID.
func (s *Service) IsBanned(ctx context.Context, guildID, userID string) (bool, error) {
	_, err := s.repo.GetBan(ctx, guildID, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, external("get ban", err)
	}
	return true, nil
}

// SetPriority stores an advisory priority and mirrors it in the topic.
func (s *Service) SetPriority(ctx context.Context, actor Actor, channelID string, p Priority) (Ticket, error) {
	defer s.lockChannel(channelID)()
	t, err := s.activeTicket(ctx, actor, channelID)
	if err != nil {
		return Ticket{}, err
	}
	old := t.Priority
	t.Priority = p
	if t, err = s.save(ctx, t); err != nil {
		return Ticket{}, err
	}
	if err := s.platform.SetTopic(ctx, channelID, t.Topic()); err != nil {
		s.log.Warn("topic not updated", zap.String("channel", channelID), zap.Error(err))
	}
	s.action(ctx, events.TicketPriority, "priority", t, actor, map[string]any{
		"old_priority": string(old),
		"new_priority": string(p),
	})
	return t, nil
}

// Archive moves the channel to the archive category.
func (s *Service) Archive(ctx context.Context, actor Actor, channelID string) (Ticket, error) {
	defer s.lockChannel(channelID)()
	t, err := s.activeTicket(ctx, actor, channelID)
	if err != nil {
		return Ticket{}, err
	}
	if s.cfg.ArchiveCategory == "" {
		return Ticket{}, fmt.Errorf("%w: no archive category configured", ErrInvalidTransition)
	}
	if err := s.platform.MoveChannel(ctx, channelID, s.cfg.ArchiveCategory); err != nil {
		return Ticket{}, external("move channel", err)
	}
	t.Status = StatusArchived
	t.CategoryID = s.cfg.ArchiveCategory
	if t, err = s.save(ctx, t); err != nil {
		return Ticket{}, err
	}
	s.action(ctx, events.TicketArchived, "archive", t, actor, nil)
	return t, nil
}

// AddMember grants userID access to the ticket.
func (s *Service) AddMember(ctx context.Context, actor Actor, channelID, userID string) error {
	defer s.lockChannel(channelID)()
	if _, err := s.activeTicket(ctx, actor, channelID); err != nil {
		return err
	}
	if err := s.platform.SetMemberAccess(ctx, channelID, userID, AccessFull); err != nil {
		return external("grant access", err)
	}
	metrics.TicketActions.WithLabelValues("add_member").Inc()
	return nil
}

// RemoveMember revokes userID's access. The owner cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, actor Actor, channelID, userID string) error {
	defer s.lockChannel(channelID)()
	t, err := s.activeTicket(ctx, actor, channelID)
	if err != nil {
		return err
	}
	if userID == t.OwnerID {
		return fmt.Errorf("%w: cannot remove the ticket owner", ErrInvalidTransition)
	}
	if err := s.platform.SetMemberAccess(ctx, channelID, userID, AccessNone); err != nil {
		return external("revoke access", err)
	}
	metrics.TicketActions.WithLabelValues("remove_member").Inc()
	return nil
}

// Deliver DMs the ticket owner a delivery notice.
func (s *Service) Deliver(ctx context.Context, actor Actor, channelID string, d Delivery) (Ticket, error) {
	t, err := s.staffTicket(ctx, actor, channelID)
	if err != nil {
		return Ticket{}, err
	}
	if err := s.platform.SendDelivery(ctx, t.OwnerID, d); err != nil {
		return Ticket{}, external("send delivery", err)
	}
	metrics.TicketActions.WithLabelValues("delivery").Inc()
	return t, nil
}

// Close captures the transcript, sends it to the log channel, drops the
// record and schedules the channel for deletion. A transcript failure is
// logged and does not stop the close.
func (s *Service) Close(ctx context.Context, actor Actor, channelID, channelName string) error {
	defer s.lockChannel(channelID)()
	t, err := s.staffTicket(ctx, actor, channelID)
	if err != nil {
		return err
	}

	outcome := "ok"
	count, err := s.captureTranscript(ctx, t, actor, channelName)
	if err != nil {
		outcome = "failed"
		s.log.Error("transcript capture failed", zap.String("channel", channelID), zap.Error(err))
	}

	if err := s.repo.DeleteTicket(ctx, channelID); err != nil && !errors.Is(err, ErrNotFound) {
		s.log.Error("ticket record not deleted", zap.String("channel", channelID), zap.Error(err))
	}

	log := s.log
	s.scheduler.Schedule(channelID, s.cfg.CloseDelay, func() {
		if err := s.platform.DeleteChannel(context.Background(), channelID); err != nil {
			log.Error("ticket channel not deleted", zap.String("channel", channelID), zap.Error(err))
			return
		}
		log.Info("ticket channel deleted", zap.String("channel", channelID))
	})

	metrics.TicketsClosed.WithLabelValues(outcome).Inc()
	s.publish(ctx, events.TicketClosed, t, actor, map[string]any{
		"messages":   count,
		"transcript": outcome,
	})
	return nil
}

// CancelClose stops a pending channel deletion.
func (s *Service) CancelClose(channelID string) bool {
	return s.scheduler.Cancel(channelID)
}

func (s *Service) captureTranscript(ctx context.Context, t Ticket, actor Actor, channelName string) (int, error) {
	msgs, err := transcript.Collect(ctx, s.platform, t.ChannelID, s.cfg.PageSize)
	if err != nil {
		return 0, err
	}
	if channelName == "" {
		channelName = ChannelName(t.OwnerName)
	}
	html, err := transcript.RenderBytes(transcript.Document{
		ChannelName: channelName,
		ClosedBy:    actor.Name,
		ClosedAt:    s.now(),
		Messages:    msgs,
	})
	if err != nil {
		return len(msgs), fmt.Errorf("render transcript: %w", err)
	}
	if s.cfg.LogChannel == "" {
		s.log.Warn("no log channel configured, transcript dropped", zap.String("channel", t.ChannelID))
		return len(msgs), nil
	}
	if err := s.platform.PostLog(ctx, s.cfg.LogChannel, Closure{
		Ticket:   t,
		ClosedBy: actor,
		Messages: len(msgs),
		Filename: fmt.Sprintf("transcript-%s-%d.html", channelName, s.now().Unix()),
		HTML:     html,
	}); err != nil {
		return len(msgs), external("post transcript", err)
	}
	return len(msgs), nil
}

// List returns the guild's ticket records.
func (s *Service) List(ctx context.Context, actor Actor, guildID string) ([]Ticket, error) {
	if !actor.Staff {
		return nil, ErrPermissionDenied
	}
	ts, err := s.repo.ListTickets(ctx, guildID)
	if err != nil {
		return nil, external("list tickets", err)
	}
	return ts, nil
}

func (s *Service) action(ctx context.Context, typ events.Type, name string, t Ticket, actor Actor, payload map[string]any) {
	metrics.TicketActions.WithLabelValues(name).Inc()
	s.log.Info("ticket "+name,
		zap.String("channel", t.ChannelID),
		zap.String("owner", t.OwnerID),
		zap.String("by", actor.ID))
	s.publish(ctx, typ, t, actor, payload)
}

func (s *Service) publish(ctx context.Context, typ events.Type, t Ticket, actor Actor, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["owner_id"] = t.OwnerID
	payload["status"] = string(t.Status)
	if err := s.events.Publish(ctx, events.New(typ, t.GuildID, t.ChannelID, actor.ID, payload)); err != nil {
		s.log.Warn("event not published", zap.String("type", string(typ)), zap.Error(err))
	}
}
