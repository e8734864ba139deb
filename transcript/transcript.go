// Package transcript captures the message history of a ticket channel and
// renders it as a single self-contained HTML document.
package transcript

import (
	"bytes"
	_ "embed"
	"html/template"
	"io"
	"time"
	"unicode/utf8"
)

// MaxEmbedDescription bounds embed descriptions copied into the document.
const MaxEmbedDescription = 500

type Message struct {
	ID           string
	AuthorName   string
	AuthorAvatar string
	Bot          bool
	Timestamp    time.Time
	Content      string
	Embeds       []Embed
	Attachments  []Attachment
}

type Embed struct {
	Title       string
	Description string
}

type Attachment struct {
	Name string
	URL  string
}

// Document is everything the template needs.
type Document struct {
	ChannelName string
	ClosedBy    string
	ClosedAt    time.Time
	Messages    []Message
}

//go:embed transcript.html.tmpl
var pageSource string

var page = template.Must(template.New("transcript").Funcs(template.FuncMap{
	"truncate": Truncate,
	"clock":    func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05") },
	"day":      func(t time.Time) string { return t.UTC().Format("2006-01-02") },
}).Parse(pageSource))

// Render writes doc as HTML. Every user-supplied field goes through the
// template's contextual escaping.
func Render(w io.Writer, doc Document) error {
	return page.Execute(w, doc)
}

// RenderBytes is Render into a buffer.
func RenderBytes(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Truncate cuts s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
