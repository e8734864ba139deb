package waitlist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

func TestView_CompleteHasNoControl(t *testing.T) {
	e := Entry{ID: "abc", CustomerID: "U1", Item: "icon", PaymentMethod: "cashapp", Status: StatusComplete}
	embed, comps := View(e, "")
	if embed == nil {
		t.Fatal("nil embed")
	}
	if len(comps) != 0 {
		t.Fatalf("complete entry rendered %d components", len(comps))
	}
}

func TestView_OtherStatusesOfferAllOptions(t *testing.T) {
	for _, st := range []Status{StatusPending, StatusPaid, StatusProcessing} {
		t.Run(string(st), func(t *testing.T) {
			_, comps := View(Entry{ID: "abc", Status: st}, "https://example.com/banner.png")
			if len(comps) != 1 {
				t.Fatalf("components = %d, want 1", len(comps))
			}
			row, ok := comps[0].(discordgo.ActionsRow)
			if !ok || len(row.Components) != 1 {
				t.Fatalf("unexpected row %#v", comps[0])
			}
			menu, ok := row.Components[0].(discordgo.SelectMenu)
			if !ok {
				t.Fatalf("not a select menu: %#v", row.Components[0])
			}
			if menu.CustomID != "waitlist_status:abc" {
				t.Fatalf("custom id = %q", menu.CustomID)
			}
			var values []string
			for _, o := range menu.Options {
				values = append(values, o.Value)
			}
			if len(values) != 3 || values[0] != "paid" || values[1] != "processing" || values[2] != "complete" {
				t.Fatalf("options = %v", values)
			}
		})
	}
}

func TestView_RebuildsFromRecord(t *testing.T) {
	e := Entry{ID: "abc", CustomerID: "U1", Item: "banner | gif", PaymentMethod: "robux", Status: StatusPaid}
	first, _ := View(e, "")
	second, _ := View(e, "")
	if first.Description != second.Description {
		t.Fatal("view not deterministic")
	}
	e.Status = StatusProcessing
	third, _ := View(e, "")
	if third.Description == first.Description {
		t.Fatal("status change not reflected")
	}
}

func TestTransition(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	e := Entry{ID: "x", Status: StatusPending}

	e, err := Transition(e, StatusPaid, now)
	if err != nil || e.Status != StatusPaid || !e.UpdatedAt.Equal(now) {
		t.Fatalf("pending->paid: %+v %v", e, err)
	}
	if _, err := Transition(e, Status("shipped"), now); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("unknown status err = %v", err)
	}
	e, err = Transition(e, StatusComplete, now)
	if err != nil {
		t.Fatal(err)
	}
	for _, st := range []Status{StatusPending, StatusPaid, StatusProcessing, StatusComplete} {
		if got, err := Transition(e, st, now); !errors.Is(err, ErrTerminal) || got.Status != StatusComplete {
			t.Fatalf("complete->%s: status=%s err=%v", st, got.Status, err)
		}
	}
}

func TestParseCustomID(t *testing.T) {
	if id, ok := ParseCustomID(CustomID("123")); !ok || id != "123" {
		t.Fatalf("round trip failed: %q %v", id, ok)
	}
	for _, bad := range []string{"waitlist_status:", "ticket_actions", ""} {
		if _, ok := ParseCustomID(bad); ok {
			t.Errorf("ParseCustomID(%q) accepted", bad)
		}
	}
}

type memRepo struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func (r *memRepo) CreateEntry(_ context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.ID] = e
	return nil
}

func (r *memRepo) GetEntry(_ context.Context, id string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (r *memRepo) UpdateEntry(_ context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.ID] = e
	return nil
}

func TestService_Lifecycle(t *testing.T) {
	repo := &memRepo{entries: map[string]Entry{}}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, false, NewEntry{}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("non-staff create err = %v", err)
	}

	e, err := svc.Create(ctx, true, NewEntry{GuildID: "G", ChannelID: "WL", CustomerID: "U1", Item: "icon", PaymentMethod: "cashapp", CreatedBy: "S1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.Status != StatusPending || e.ID == "" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if err := svc.AttachMessage(ctx, e.ID, "M1"); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Select(ctx, false, "U1", e.ID, "paid"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("non-staff select err = %v", err)
	}
	got, err := svc.Select(ctx, true, "S1", e.ID, "processing")
	if err != nil || got.Status != StatusProcessing || got.MessageID != "M1" {
		t.Fatalf("select processing: %+v %v", got, err)
	}
	if _, err := svc.Select(ctx, true, "S1", e.ID, "complete"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Select(ctx, true, "S1", e.ID, "paid"); !errors.Is(err, ErrTerminal) {
		t.Fatalf("select after complete err = %v", err)
	}
	if _, err := svc.Select(ctx, true, "S1", "missing", "paid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing entry err = %v", err)
	}
}

// pairedReads holds each GetEntry until a second reader arrives or the
// wait runs out, so unserialized callers both read the same record.
type pairedReads struct {
	*memRepo
	mu      sync.Mutex
	readers int
	both    chan struct{}
}

func (r *pairedReads) GetEntry(ctx context.Context, id string) (Entry, error) {
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
	return r.memRepo.GetEntry(ctx, id)
}

func TestService_ConcurrentSelectKeepsComplete(t *testing.T) {
	for run := 0; run < 3; run++ {
		base := &memRepo{entries: map[string]Entry{}}
		svc := NewService(base, nil, nil)
		ctx := context.Background()
		e, err := svc.Create(ctx, true, NewEntry{GuildID: "G", CustomerID: "U1", Item: "icon"})
		if err != nil {
			t.Fatal(err)
		}
		svc.repo = &pairedReads{memRepo: base, both: make(chan struct{})}

		var wg sync.WaitGroup
		var completeErr, paidErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, completeErr = svc.Select(ctx, true, "S1", e.ID, "complete")
		}()
		go func() {
			defer wg.Done()
			_, paidErr = svc.Select(ctx, true, "S2", e.ID, "paid")
		}()
		wg.Wait()

		if completeErr != nil {
			t.Fatalf("complete: %v", completeErr)
		}
		got, _ := base.GetEntry(ctx, e.ID)
		if got.Status != StatusComplete {
			t.Fatalf("run %d: final status = %s (paid err = %v), want complete", run, got.Status, paidErr)
		}
		if paidErr != nil && !errors.Is(paidErr, ErrTerminal) {
			t.Fatalf("paid err = %v", paidErr)
		}
	}
}

func TestService_AttachMessageDoesNotRevertStatus(t *testing.T) {
	base := &memRepo{entries: map[string]Entry{}}
	svc := NewService(base, nil, nil)
	ctx := context.Background()
	e, err := svc.Create(ctx, true, NewEntry{GuildID: "G", CustomerID: "U1", Item: "icon"})
	if err != nil {
		t.Fatal(err)
	}
	svc.repo = &pairedReads{memRepo: base, both: make(chan struct{})}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := svc.AttachMessage(ctx, e.ID, "M1"); err != nil {
			t.Errorf("AttachMessage: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := svc.Select(ctx, true, "S1", e.ID, "complete"); err != nil {
			t.Errorf("Select: %v", err)
		}
	}()
	wg.Wait()

	got, _ := base.GetEntry(ctx, e.ID)
	if got.Status != StatusComplete || got.MessageID != "M1" {
		t.Fatalf("entry = %+v, want complete with message M1", got)
	}
}
