package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront-bot/transcript"
)

type memRepo struct {
	mu      sync.Mutex
	tickets map[string]Ticket
	bans    map[string]Ban
}

func newMemRepo() *memRepo {
	return &memRepo{tickets: map[string]Ticket{}, bans: map[string]Ban{}}
}

func (r *memRepo) CreateTicket(_ context.Context, t Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[t.ChannelID] = t
	return nil
}

func (r *memRepo) GetTicket(_ context.Context, id string) (Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	return t, nil
}

func (r *memRepo) FindTicketByOwner(_ context.Context, guildID, ownerID string) (Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tickets {
		if t.GuildID == guildID && t.OwnerID == ownerID {
			return t, nil
		}
	}
	return Ticket{}, ErrNotFound
}

func (r *memRepo) ListTickets(_ context.Context, guildID string) ([]Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Ticket
	for _, t := range r.tickets {
		if t.GuildID == guildID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateTicket(_ context.Context, t Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[t.ChannelID]; !ok {
		return ErrNotFound
	}
	r.tickets[t.ChannelID] = t
	return nil
}

func (r *memRepo) DeleteTicket(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tickets, id)
	return nil
}

func (r *memRepo) PutBan(_ context.Context, b Ban) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bans[b.GuildID+"/"+b.UserID] = b
	return nil
}

func (r *memRepo) GetBan(_ context.Context, guildID, userID string) (Ban, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bans[guildID+"/"+userID]
	if !ok {
		return Ban{}, ErrNotFound
	}
	return b, nil
}

func (r *memRepo) DeleteBan(_ context.Context, guildID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := guildID + "/" + userID
	if _, ok := r.bans[key]; !ok {
		return ErrNotFound
	}
	delete(r.bans, key)
	return nil
}

type fakePlatform struct {
	mu       sync.Mutex
	next     int
	channels map[string]ChannelSpec
	access   map[string]Access
	topics   map[string]string
	parents  map[string]string
	deleted  []string
	panels   int
	logs     []Closure
	history  map[string][]transcript.Message
	fetchErr error
	deliver  []string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		channels: map[string]ChannelSpec{},
		access:   map[string]Access{},
		topics:   map[string]string{},
		parents:  map[string]string{},
		history:  map[string][]transcript.Message{},
	}
}

func (p *fakePlatform) MessagesBefore(_ context.Context, channelID, before string, limit int) ([]transcript.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	msgs := p.history[channelID]
	end := len(msgs)
	if before != "" {
		for i, m := range msgs {
			if m.ID == before {
				end = i
			}
		}
	}
	var page []transcript.Message
	for i := end - 1; i >= 0 && len(page) < limit; i-- {
		page = append(page, msgs[i])
	}
	return page, nil
}

func (p *fakePlatform) ChannelExists(_ context.Context, guildID, name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.channels {
		if c.GuildID == guildID && c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (p *fakePlatform) CreateChannel(_ context.Context, spec ChannelSpec) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	id := fmt.Sprintf("chan-%d", p.next)
	p.channels[id] = spec
	p.topics[id] = spec.Topic
	return id, nil
}

func (p *fakePlatform) DeleteChannel(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.channels, id)
	p.deleted = append(p.deleted, id)
	return nil
}

func (p *fakePlatform) MoveChannel(_ context.Context, id, parent string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parents[id] = parent
	return nil
}

func (p *fakePlatform) SetTopic(_ context.Context, id, topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics[id] = topic
	return nil
}

func (p *fakePlatform) SetMemberAccess(_ context.Context, id, user string, a Access) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.access[id+"/"+user] = a
	return nil
}

func (p *fakePlatform) PostPanel(context.Context, Ticket) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panels++
	return nil
}

func (p *fakePlatform) PostLog(_ context.Context, _ string, c Closure) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logs = append(p.logs, c)
	return nil
}

func (p *fakePlatform) SendDelivery(_ context.Context, user string, _ Delivery) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliver = append(p.deliver, user)
	return nil
}

func (p *fakePlatform) channelCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}

func (p *fakePlatform) deletedChannels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deleted...)
}

var (
	owner = Actor{ID: "U1", Name: "Amy"}
	staff = Actor{ID: "S1", Name: "staffer", Staff: true}
)

func newTestService(t *testing.T) (*Service, *memRepo, *fakePlatform) {
	t.Helper()
	repo := newMemRepo()
	plat := newFakePlatform()
	sched := NewScheduler()
	t.Cleanup(sched.Stop)
	svc := NewService(Config{
		StaffRole:       "staff-role",
		LogChannel:      "log",
		ArchiveCategory: "archive",
		CloseDelay:      10 * time.Millisecond,
		PageSize:        100,
	}, repo, plat, nil, sched, nil)
	return svc, repo, plat
}

func TestCreate(t *testing.T) {
	svc, repo, plat := newTestService(t)

	tk, err := svc.Create(context.Background(), owner, "G", "C")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tk.Status != StatusOpen || tk.OwnerID != "U1" || tk.CategoryID != "C" {
		t.Fatalf("unexpected ticket %+v", tk)
	}
	spec := plat.channels[tk.ChannelID]
	if spec.Name != "ticket-amy" || spec.StaffRole != "staff-role" || spec.OwnerID != "U1" {
		t.Fatalf("unexpected channel spec %+v", spec)
	}
	if !strings.Contains(spec.Topic, "Owner: U1") {
		t.Fatalf("topic = %q", spec.Topic)
	}
	if plat.panels != 1 {
		t.Fatalf("panels = %d", plat.panels)
	}
	if _, err := repo.GetTicket(context.Background(), tk.ChannelID); err != nil {
		t.Fatalf("record not stored: %v", err)
	}
}

func TestCreate_DuplicateAllocatesNothing(t *testing.T) {
	svc, _, plat := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, owner, "G", "C"); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := svc.Create(ctx, owner, "G", "C"); !errors.Is(err, ErrDuplicateTicket) {
		t.Fatalf("second Create err = %v, want ErrDuplicateTicket", err)
	}
	if n := plat.channelCount(); n != 1 {
		t.Fatalf("channels allocated = %d, want 1", n)
	}
}

func TestCreate_ExistingChannelNameIsDuplicate(t *testing.T) {
	svc, _, plat := newTestService(t)
	plat.channels["legacy"] = ChannelSpec{GuildID: "G", Name: "ticket-amy"}

	if _, err := svc.Create(context.Background(), owner, "G", "C"); !errors.Is(err, ErrDuplicateTicket) {
		t.Fatalf("err = %v, want ErrDuplicateTicket", err)
	}
	if plat.channelCount() != 0 {
		t.Fatal("channel allocated despite duplicate")
	}
}

func TestCreate_ConcurrentSameOwner(t *testing.T) {
	svc, _, plat := newTestService(t)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		okN  int
		dupN int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), owner, "G", "C")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				okN++
			case errors.Is(err, ErrDuplicateTicket):
				dupN++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if okN != 1 || dupN != 15 {
		t.Fatalf("ok=%d dup=%d, want 1 and 15", okN, dupN)
	}
	if plat.channelCount() != 1 {
		t.Fatalf("channels = %d", plat.channelCount())
	}
}

func TestStaffActions_RequireStaffAndRecord(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tk, err := svc.Create(ctx, owner, "G", "C")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Lock(ctx, owner, tk.ChannelID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("non-staff lock err = %v", err)
	}
	if _, err := svc.Lock(ctx, staff, "not-a-ticket"); !errors.Is(err, ErrOwnerNotResolvable) {
		t.Fatalf("unknown channel err = %v", err)
	}
	if err := svc.Close(ctx, owner, tk.ChannelID, ""); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("non-staff close err = %v", err)
	}
}

func TestLockUnlock(t *testing.T) {
	svc, _, plat := newTestService(t)
	ctx := context.Background()
	tk, _ := svc.Create(ctx, owner, "G", "C")

	for i := 0; i < 2; i++ {
		got, err := svc.Lock(ctx, staff, tk.ChannelID)
		if err != nil || got.Status != StatusLocked {
			t.Fatalf("lock #%d: status=%s err=%v", i+1, got.Status, err)
		}
	}
	if plat.access[tk.ChannelID+"/U1"] != AccessReadOnly {
		t.Fatal("owner send permission not revoked")
	}

	got, err := svc.Unlock(ctx, staff, tk.ChannelID)
	if err != nil || got.Status != StatusOpen {
		t.Fatalf("unlock: status=%s err=%v", got.Status, err)
	}
	if plat.access[tk.ChannelID+"/U1"] != AccessFull {
		t.Fatal("owner send permission not restored")
	}
}

func TestBan(t *testing.T) {
	svc, repo, plat := newTestService(t)
	ctx := context.Background()
	tk, _ := svc.Create(ctx, owner, "G", "C")

	got, err := svc.Ban(ctx, staff, tk.ChannelID)
	if err != nil || got.Status != StatusBanned {
		t.Fatalf("ban: status=%s err=%v", got.Status, err)
	}
	if plat.access[tk.ChannelID+"/U1"] != AccessReadOnly {
		t.Fatal("banned owner can still send")
	}
	if _, err := svc.Lock(ctx, staff, tk.ChannelID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("lock after ban err = %v", err)
	}

	// close it so only the ban record stands in the way
	if err := svc.Close(ctx, staff, tk.ChannelID, ""); err != nil {
		t.Fatalf("close banned ticket: %v", err)
	}
	before := plat.channelCount()
	if _, err := svc.Create(ctx, owner, "G", "C"); !errors.Is(err, ErrBanned) {
		t.Fatalf("create after ban err = %v, want ErrBanned", err)
	}
	if plat.channelCount() != before {
		t.Fatal("channel allocated for banned owner")
	}

	if err := svc.Unban(ctx, staff, "G", "U1"); err != nil {
		t.Fatalf("Unban: %v", err)
	}
	if err := svc.Unban(ctx, staff, "G", "U1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Unban err = %v", err)
	}
	if banned, _ := svc.IsBanned(ctx, "G", "U1"); banned {
		t.Fatal("still banned after unban")
	}
	if len(repo.bans) != 0 {
		t.Fatal("ban record left behind")
	}
}

func TestSetPriority(t *testing.T) {
	svc, _, plat := newTestService(t)
	ctx := context.Background()
	tk, _ := svc.Create(ctx, owner, "G", "C")

	p, err := ParsePriority("Urgent")
	if err != nil {
		t.Fatal(err)
	}
	got, err := svc.SetPriority(ctx, staff, tk.ChannelID, p)
	if err != nil || got.Priority != PriorityUrgent {
		t.Fatalf("priority=%s err=%v", got.Priority, err)
	}
	if topic := plat.topics[tk.ChannelID]; topic != "Owner: U1 | Priority: urgent" {
		t.Fatalf("topic = %q", topic)
	}
	if _, err := ParsePriority("critical"); err == nil {
		t.Fatal("unknown priority accepted")
	}
}

func TestArchive(t *testing.T) {
	svc, _, plat := newTestService(t)
	ctx := context.Background()
	tk, _ := svc.Create(ctx, owner, "G", "C")

	got, err := svc.Archive(ctx, staff, tk.ChannelID)
	if err != nil || got.Status != StatusArchived {
		t.Fatalf("archive: status=%s err=%v", got.Status, err)
	}
	if plat.parents[tk.ChannelID] != "archive" {
		t.Fatalf("moved to %q", plat.parents[tk.ChannelID])
	}
	if _, err := svc.Archive(ctx, staff, tk.ChannelID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second archive err = %v", err)
	}
}

func TestMembers(t *testing.T) {
	svc, _, plat := newTestService(t)
	ctx := context.Background()
	tk, _ := svc.Create(ctx, owner, "G", "C")

	if err := svc.AddMember(ctx, staff, tk.ChannelID, "U2"); err != nil {
		t.Fatal(err)
	}
	if plat.access[tk.ChannelID+"/U2"] != AccessFull {
		t.Fatal("member not added")
	}
	if err := svc.RemoveMember(ctx, staff, tk.ChannelID, "U2"); err != nil {
		t.Fatal(err)
	}
	if plat.access[tk.ChannelID+"/U2"] != AccessNone {
		t.Fatal("member not removed")
	}
	if err := svc.RemoveMember(ctx, staff, tk.ChannelID, "U1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("removing owner err = %v", err)
	}
}

func TestDeliver(t *testing.T) {
	svc, _, plat := newTestService(t)
	ctx := context.Background()
	tk, _ := svc.Create(ctx, owner, "G", "C")

	if _, err := svc.Deliver(ctx, staff, tk.ChannelID, Delivery{Link: "https://example.com", Items: "1x icon"}); err != nil {
		t.Fatal(err)
	}
	if len(plat.deliver) != 1 || plat.deliver[0] != "U1" {
		t.Fatalf("deliveries = %v", plat.deliver)
	}
}

func waitDeleted(t *testing.T, plat *fakePlatform, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, d := range plat.deletedChannels() {
			if d == id {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("channel %s never deleted", id)
}

func TestClose_TranscriptThenDelete(t *testing.T) {
	svc, repo, plat := newTestService(t)
	ctx := context.Background()
	tk, _ := svc.Create(ctx, owner, "G", "C")

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 150; i++ {
		plat.history[tk.ChannelID] = append(plat.history[tk.ChannelID], transcript.Message{
			ID:         fmt.Sprintf("m%03d", i),
			AuthorName: "Amy",
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			Content:    fmt.Sprintf("message %03d", i),
		})
	}

	if err := svc.Close(ctx, staff, tk.ChannelID, "ticket-amy"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(plat.logs) != 1 {
		t.Fatalf("transcripts posted = %d", len(plat.logs))
	}
	c := plat.logs[0]
	if c.Messages != 150 || c.ClosedBy.ID != "S1" {
		t.Fatalf("closure = %+v", c)
	}
	html := string(c.HTML)
	if strings.Index(html, "message 000") > strings.Index(html, "message 149") {
		t.Fatal("transcript not in ascending order")
	}
	if _, err := repo.GetTicket(ctx, tk.ChannelID); !errors.Is(err, ErrNotFound) {
		t.Fatal("ticket record not deleted")
	}
	waitDeleted(t, plat, tk.ChannelID)

	// owner may open a new ticket once the old one is closed
	if _, err := svc.Create(ctx, owner, "G", "C"); err != nil {
		t.Fatalf("create after close: %v", err)
	}
}

func TestClose_TranscriptFailureStillDeletes(t *testing.T) {
	svc, _, plat := newTestService(t)
	ctx := context.Background()
	tk, _ := svc.Create(ctx, owner, "G", "C")
	plat.fetchErr = errors.New("discord down")

	if err := svc.Close(ctx, staff, tk.ChannelID, ""); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(plat.logs) != 0 {
		t.Fatal("transcript posted despite fetch failure")
	}
	waitDeleted(t, plat, tk.ChannelID)
}

func TestCancelClose(t *testing.T) {
	repo := newMemRepo()
	plat := newFakePlatform()
	sched := NewScheduler()
	defer sched.Stop()
	svc := NewService(Config{CloseDelay: time.Hour}, repo, plat, nil, sched, nil)
	ctx := context.Background()

	tk, _ := svc.Create(ctx, owner, "G", "C")
	if err := svc.Close(ctx, staff, tk.ChannelID, ""); err != nil {
		t.Fatal(err)
	}
	if sched.Pending() != 1 {
		t.Fatalf("pending = %d", sched.Pending())
	}
	if !svc.CancelClose(tk.ChannelID) {
		t.Fatal("CancelClose found nothing")
	}
	if len(plat.deletedChannels()) != 0 {
		t.Fatal("channel deleted after cancel")
	}
}

// pairedReads holds each GetTicket until a second reader arrives or the
// wait runs out, so unserialized callers both read the same record.
type pairedReads struct {
	*memRepo
	mu      sync.Mutex
	readers int
	both    chan struct{}
}

func (r *pairedReads) GetTicket(ctx context.Context, id string) (Ticket, error) {
	r.mu.Lock()
	r.readers++
	if r.readers == 2 {
		close(r.both)
	}
	r.mu.Unlock()
	select {
	case <-r.both:
	case <-time.After(50 * time.Millisecond):
	}
	return r.memRepo.GetTicket(ctx, id)
}

func TestBan_ConcurrentUnlockKeepsBanned(t *testing.T) {
	for run := 0; run < 5; run++ {
		svc, repo, plat := newTestService(t)
		ctx := context.Background()
		tk, err := svc.Create(ctx, owner, "G", "C")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := svc.Lock(ctx, staff, tk.ChannelID); err != nil {
			t.Fatal(err)
		}
		svc.repo = &pairedReads{memRepo: repo, both: make(chan struct{})}

		var wg sync.WaitGroup
		var banErr, unlockErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, banErr = svc.Ban(ctx, staff, tk.ChannelID)
		}()
		go func() {
			defer wg.Done()
			_, unlockErr = svc.Unlock(ctx, staff, tk.ChannelID)
		}()
		wg.Wait()

		if banErr != nil {
			t.Fatalf("ban: %v", banErr)
		}
		if unlockErr != nil && !errors.Is(unlockErr, ErrInvalidTransition) {
			t.Fatalf("unlock err = %v", unlockErr)
		}
		got, _ := repo.GetTicket(ctx, tk.ChannelID)
		if got.Status != StatusBanned {
			t.Fatalf("run %d: final status = %s, want banned", run, got.Status)
		}
		plat.mu.Lock()
		access := plat.access[tk.ChannelID+"/U1"]
		plat.mu.Unlock()
		if access != AccessReadOnly {
			t.Fatalf("run %d: banned owner access = %v", run, access)
		}
	}
}

func TestClose_NoLogChannelOrArchive(t *testing.T) {
	repo := newMemRepo()
	plat := newFakePlatform()
	sched := NewScheduler()
	t.Cleanup(sched.Stop)
	svc := NewService(Config{CloseDelay: 10 * time.Millisecond}, repo, plat, nil, sched, nil)
	ctx := context.Background()

	tk, err := svc.Create(ctx, owner, "G", "C")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Archive(ctx, staff, tk.ChannelID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("archive without category err = %v", err)
	}
	if err := svc.Close(ctx, staff, tk.ChannelID, ""); err != nil {
		t.Fatalf("close: %v", err)
	}
	plat.mu.Lock()
	logs := len(plat.logs)
	plat.mu.Unlock()
	if logs != 0 {
		t.Fatalf("transcript posted %d times with no log channel", logs)
	}
}
