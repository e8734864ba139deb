package autoresponder

// Action is what the caller should do with a message. The zero value is
// NoAction.
type Action struct {
	Matched        bool
	Trigger        string
	Respond        string
	DeleteOriginal bool
}

var NoAction = Action{}

// Fired reports whether a rule matched.
func (a Action) Fired() bool {
	return a.Matched
}

// Evaluate runs the message through the enabled rules in insertion order and
// returns the first match. Messages from bots never fire so two bots cannot
// answer each other forever.
func Evaluate(s *Store, text string, authorIsBot bool) Action {
	if authorIsBot || s == nil {
		return NoAction
	}
	normalized := Normalize(text)
	for rule := range s.List() {
		if rule.Matches(normalized) {
			return Action{
				Matched:        true,
				Trigger:        rule.Trigger,
				Respond:        rule.Response,
				DeleteOriginal: rule.DeleteTriggerMessage,
			}
		}
	}
	return NoAction
}
