package lang

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

var (
	mu       sync.RWMutex
	messages map[string]string
)

func init() {
	m, _, err := parse(defaultCatalog)
	if err != nil {
		panic("lang: embedded catalog: " + err.Error())
	}
	messages = m
}

// Load overlays the catalog at path on top of the embedded defaults. Keys
// missing from the file keep their default text. The active language is the
// file's active_language, falling back to "en".
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	base, _, err := parse(defaultCatalog)
	if err != nil {
		return "", err
	}
	overlay, active, err := parse(data)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	for k, v := range overlay {
		base[k] = v
	}

	mu.Lock()
	messages = base
	mu.Unlock()
	return active, nil
}

func parse(data []byte) (map[string]string, string, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, "", err
	}

	active := "en"
	if s, ok := raw["active_language"].(string); ok && s != "" {
		active = s
	}

	block, ok := raw[active].(map[string]interface{})
	if !ok {
		active = "en"
		block, ok = raw[active].(map[string]interface{})
		if !ok {
			return nil, "", fmt.Errorf("no %q language block", active)
		}
	}

	m := make(map[string]string, len(block))
	for k, v := range block {
		if s, ok := v.(string); ok {
			m[k] = s
		}
	}
	return m, active, nil
}

// T returns the message for key with {name} placeholders replaced from the
// name/value pairs. Unknown keys render as "{key}".
func T(key string, pairs ...string) string {
	mu.RLock()
	s, ok := messages[key]
	mu.RUnlock()

	if !ok {
		return "{" + key + "}"
	}
	for j := 0; j+1 < len(pairs); j += 2 {
		s = strings.ReplaceAll(s, "{"+pairs[j]+"}", pairs[j+1])
	}
	return s
}
