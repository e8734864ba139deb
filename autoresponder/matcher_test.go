package autoresponder

import "testing"

func TestEvaluate(t *testing.T) {
	s, _ := newTestStore(t)
	s.Add("hello", Rule{Response: "hi!", Enabled: true})
	s.Add("price", Rule{Response: "see prices", MatchMode: MatchExact, DeleteTriggerMessage: true, Enabled: true})

	tests := []struct {
		name    string
		text    string
		bot     bool
		fired   bool
		respond string
		del     bool
	}{
		{name: "substring", text: "well hello there", fired: true, respond: "hi!"},
		{name: "case insensitive", text: "HELLO", fired: true, respond: "hi!"},
		{name: "prefix of trigger", text: "hell"},
		{name: "exact match", text: "Price", fired: true, respond: "see prices", del: true},
		{name: "exact needs whole text", text: "what is the price"},
		{name: "bot author", text: "hello", bot: true},
		{name: "empty text", text: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := Evaluate(s, tc.text, tc.bot)
			if a.Fired() != tc.fired {
				t.Fatalf("Fired = %v, want %v", a.Fired(), tc.fired)
			}
			if !tc.fired {
				if a != NoAction {
					t.Fatalf("expected NoAction, got %+v", a)
				}
				return
			}
			if a.Respond != tc.respond || a.DeleteOriginal != tc.del {
				t.Fatalf("got %+v", a)
			}
		})
	}
}

func TestEvaluate_DisabledRuleIsSkipped(t *testing.T) {
	s, _ := newTestStore(t)
	s.Add("hello", Rule{Response: "hi!", Enabled: true})
	if _, err := s.Toggle("hello"); err != nil {
		t.Fatal(err)
	}
	if a := Evaluate(s, "hello", false); a.Fired() {
		t.Fatalf("disabled rule fired: %+v", a)
	}
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	s, _ := newTestStore(t)
	s.Add("shop", Rule{Response: "first", Enabled: true})
	s.Add("shop open", Rule{Response: "second", Enabled: true})

	a := Evaluate(s, "is the shop open?", false)
	if a.Trigger != "shop" || a.Respond != "first" {
		t.Fatalf("got %+v, want the earlier rule", a)
	}
}

func TestEvaluate_NilStore(t *testing.T) {
	if a := Evaluate(nil, "hello", false); a.Fired() {
		t.Fatal("nil store fired")
	}
}
