package autoresponder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store is the single access point for autoresponder rules. Every mutation
// runs under the write lock together with the save that follows it, so two
// overlapping admin commands can never lose each other's update.
type Store struct {
	mu    sync.RWMutex
	path  string
	log   *zap.Logger
	now   func() time.Time
	order []string
	rules map[string]Rule
}

// Open loads the store from path. A missing file starts empty; an unreadable
// or corrupt one is logged and also starts empty.
func Open(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		path:  path,
		log:   log,
		now:   time.Now,
		rules: make(map[string]Rule),
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		order, rules, err := decodeOrdered(data)
		if err != nil {
			log.Error("autoresponder file unreadable, starting empty", zap.String("path", path), zap.Error(err))
			break
		}
		s.order, s.rules = order, rules
		log.Info("loaded autoresponders", zap.Int("count", len(order)), zap.String("path", path))
	case errors.Is(err, os.ErrNotExist):
		log.Info("no autoresponder file yet", zap.String("path", path))
	default:
		log.Error("autoresponder file unreadable, starting empty", zap.String("path", path), zap.Error(err))
	}
	return s
}

// Add upserts a rule under the normalized trigger. Re-adding an existing
// trigger replaces its rule but keeps its listing position.
func (s *Store) Add(trigger string, rule Rule) Rule {
	key := Normalize(trigger)
	rule.Trigger = key
	if rule.MatchMode == "" {
		rule.MatchMode = MatchContains
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[key]; !ok {
		s.order = append(s.order, key)
	}
	s.rules[key] = rule
	s.persistLocked()
	return rule
}

func (s *Store) Remove(trigger string) error {
	key := Normalize(trigger)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[key]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	delete(s.rules, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.persistLocked()
	return nil
}

// Toggle flips Enabled and returns the updated rule.
func (s *Store) Toggle(trigger string) (Rule, error) {
	key := Normalize(trigger)

	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[key]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	rule.Enabled = !rule.Enabled
	s.rules[key] = rule
	s.persistLocked()
	return rule, nil
}

func (s *Store) Get(trigger string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[Normalize(trigger)]
	return rule, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// List yields the rules in insertion order. Each iteration works on a
// snapshot taken when it starts, so the sequence can be ranged over again and
// never observes a half-applied mutation.
func (s *Store) List() iter.Seq[Rule] {
	return func(yield func(Rule) bool) {
		for _, r := range s.snapshot() {
			if !yield(r) {
				return
			}
		}
	}
}

func (s *Store) snapshot() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rule, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.rules[k])
	}
	return out
}

// persistLocked overwrites the file with the full store. Failures are
// logged and the in-memory state is kept.
func (s *Store) persistLocked() {
	data, err := encodeOrdered(s.order, s.rules)
	if err != nil {
		s.log.Error("encode autoresponders", zap.Error(err))
		return
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		s.log.Error("save autoresponders", zap.String("path", s.path), zap.Error(err))
	}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".autoresponders-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// encodeOrdered writes a JSON object whose keys follow order.
func encodeOrdered(order []string, rules map[string]Rule) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, k := range order {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.MarshalIndent(rules[k], "  ", "  ")
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
	}
	if len(order) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// decodeOrdered reads a trigger → rule object keeping key order. Keys are
// normalized; a later duplicate replaces the earlier value in place.
func decodeOrdered(data []byte) ([]string, map[string]Rule, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}

	var order []string
	rules := make(map[string]Rule)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		raw, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected trigger key, got %v", tok)
		}
		var rule Rule
		if err := dec.Decode(&rule); err != nil {
			return nil, nil, fmt.Errorf("trigger %q: %w", raw, err)
		}
		key := Normalize(raw)
		rule.Trigger = key
		if _, seen := rules[key]; !seen {
			order = append(order, key)
		}
		rules[key] = rule
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	return order, rules, nil
}
