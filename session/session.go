// Package session holds per-conversation state: bounded chat history,
// recent query context, the last successful result and cost accounting.
// Sessions are in-memory only; a process restart starts everyone fresh.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// MaxCachedRows bounds how many rows of the last result are retained
	// for cache answers.
	MaxCachedRows = 200

	// maxRecentQueries bounds the query-context ring.
	maxRecentQueries = 3
)

// Message is one turn of a conversation. Immutable once appended; only
// compaction may replace a range with a summary message.
type Message struct {
	Role    string           `json:"role"`
	Content string           `json:"content"`
	SQL     string           `json:"sql,omitempty"`
	Data    []map[string]any `json:"data,omitempty"`
	Tokens  int              `json:"tokens,omitempty"`
	Model   string           `json:"model,omitempty"`
	Cost    float64          `json:"cost,omitempty"`
}

// QueryRecord tracks one analyzed data question for continuation context.
type QueryRecord struct {
	Query      string `json:"query"`
	Complexity string `json:"complexity"`
	Domain     string `json:"domain"`
}

// ResultCache holds the last successful result, row-capped.
type ResultCache struct {
	SQL     string           `json:"sql"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Session is the mutable state of one conversation. Callers must hold Mu
// across any read-modify-write span that touches more than one field.
type Session struct {
	Mu sync.Mutex

	ID             string
	UserEmail      string
	UserName       string
	History        []Message
	Context        []QueryRecord
	LastSQLSuccess string
	LastData       *ResultCache
	LastContext    map[string]any
	TotalCost      float64
	Flags          map[string]bool
	Summaries      []string

	CreatedAt  time.Time
	lastAccess time.Time
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		Flags:       make(map[string]bool),
		LastContext: make(map[string]any),
		CreatedAt:   now,
		lastAccess:  now,
	}
}

// Touch refreshes the inactivity clock.
func (s *Session) Touch() {
	s.lastAccess = time.Now()
}

// ExpiredSince reports whether the session has been idle past ttl.
func (s *Session) ExpiredSince(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.lastAccess) > ttl
}

// Append adds a message and enforces the hard history limit by dropping
// the oldest entries. Compaction normally keeps history well under the
// limit; Append is the backstop.
func (s *Session) Append(limit int, msgs ...Message) {
	s.History = append(s.History, msgs...)
	if limit > 0 && len(s.History) > limit {
		s.History = s.History[len(s.History)-limit:]
	}
}

// AddQuery records an analyzed question, keeping only the most recent few.
func (s *Session) AddQuery(rec QueryRecord) {
	s.Context = append(s.Context, rec)
	if len(s.Context) > maxRecentQueries {
		s.Context = s.Context[len(s.Context)-maxRecentQueries:]
	}
}

// AddCost accumulates spend. Negative deltas are ignored so the total
// stays monotonic.
func (s *Session) AddCost(delta float64) {
	if delta > 0 {
		s.TotalCost += delta
	}
}

// SetLastData caches a successful result, truncating to MaxCachedRows.
func (s *Session) SetLastData(sql string, columns []string, rows []map[string]any) {
	if len(rows) > MaxCachedRows {
		rows = rows[:MaxCachedRows]
	}
	s.LastData = &ResultCache{SQL: sql, Columns: columns, Rows: rows}
	s.LastSQLSuccess = sql
}

// RecentContext renders the query-context ring as a short prompt fragment.
func (s *Session) RecentContext() string {
	if len(s.Context) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("שאלות אחרונות בשיחה:\n")
	for _, rec := range s.Context {
		fmt.Fprintf(&b, "- %s (%s, %s)\n", rec.Query, rec.Complexity, rec.Domain)
	}
	return b.String()
}
