package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AdamZagri/aibi-server/agent"
	"github.com/AdamZagri/aibi-server/config"
	"github.com/AdamZagri/aibi-server/dbpool"
	"github.com/AdamZagri/aibi-server/logger"
	"github.com/AdamZagri/aibi-server/notify"
	"github.com/AdamZagri/aibi-server/session"
)

// maxBodyBytes caps chat request bodies.
const maxBodyBytes = 1 << 20

// Handlers binds the HTTP surface to the pipeline and its collaborators.
type Handlers struct {
	Cfg         config.Config
	Pipeline    *agent.Pipeline
	Repo        *session.Repository
	Querier     agent.Querier
	SchemaCache *agent.SchemaCache
	Dialect     *dbpool.Dialect
	Hub         *notify.Hub
	Log         *logger.Logger

	startedAt time.Time
}

func NewHandlers(cfg config.Config, pipeline *agent.Pipeline, repo *session.Repository, querier agent.Querier, schemaCache *agent.SchemaCache, dialect *dbpool.Dialect, hub *notify.Hub, log *logger.Logger) *Handlers {
	return &Handlers{
		Cfg:         cfg,
		Pipeline:    pipeline,
		Repo:        repo,
		Querier:     querier,
		SchemaCache: schemaCache,
		Dialect:     dialect,
		Hub:         hub,
		Log:         log,
		startedAt:   time.Now(),
	}
}

type chatRequest struct {
	Message       string               `json:"message"`
	ChatID        string               `json:"chatId"`
	MessageID     string               `json:"messageId"`
	Clarification *agent.Clarification `json:"clarification"`
}

// Chat handles one conversational message.
func (h *Handlers) Chat(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var body chatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty query"})
		return
	}

	req := agent.Request{
		Message:       body.Message,
		ChatID:        body.ChatID,
		MessageID:     body.MessageID,
		Clarification: body.Clarification,
		UserEmail:     c.GetHeader("X-User-Email"),
		UserName:      c.GetHeader("X-User-Name"),
	}

	resp := h.Pipeline.Handle(c.Request.Context(), req)

	// A freshly minted conversation id is exposed via header so the
	// client can reuse it.
	if body.ChatID != resp.ChatID {
		c.Header("X-Chat-Id", resp.ChatID)
	}

	if resp.Error {
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type refreshRequest struct {
	SQLQuery string `json:"sql_query"`
}

// RefreshData re-executes previously returned SQL so the UI can re-pull a
// chart without regenerating it. The write guard still applies.
func (h *Handlers) RefreshData(c *gin.Context) {
	var body refreshRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.SQLQuery == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid sql_query"})
		return
	}

	if err := agent.GuardSQL(body.SQLQuery); err != nil {
		h.Log.Error("refresh rejected by write guard", "sql_preview", body.SQLQuery)
		c.JSON(http.StatusBadRequest, gin.H{"error": "forbidden SQL command"})
		return
	}

	if err := h.SchemaCache.Refresh(c.Request.Context()); err != nil {
		h.Log.Warn("schema refresh failed during data refresh", "error", err)
	}

	result, err := h.Querier.Query(c.Request.Context(), body.SQLQuery)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "SQL error", "detail": err.Error()})
		return
	}
	if len(result.Rows) == 0 {
		c.JSON(http.StatusOK, gin.H{"reply": "לא נמצאו נתונים", "data": gin.H{"columns": []string{}, "rows": [][]any{}}})
		return
	}

	rows := make([][]any, 0, len(result.Rows))
	for _, m := range result.Rows {
		vals := make([]any, len(result.Columns))
		for i, col := range result.Columns {
			vals[i] = m[col]
		}
		rows = append(rows, vals)
	}
	c.JSON(http.StatusOK, gin.H{"columns": result.Columns, "rows": rows})
}

// ChatHistory returns a conversation's history, summaries and cost.
func (h *Handlers) ChatHistory(c *gin.Context) {
	chatID := c.Query("chatId")
	if chatID == "" {
		chatID = c.GetHeader("X-Chat-Id")
	}
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing chatId"})
		return
	}

	sess := h.Repo.Get(chatID)
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat session not found"})
		return
	}

	sess.Mu.Lock()
	defer sess.Mu.Unlock()
	sess.Touch()
	c.JSON(http.StatusOK, gin.H{
		"chatId": chatID,
		"full":   sess.History,
		"ai": gin.H{
			"summaries": sess.Summaries,
			"recent":    sess.History,
		},
		"totalCost": sess.TotalCost,
	})
}

// Health reports schema-cache freshness, session count and aggregate
// spend, plus a live table listing straight from the database.
func (h *Handlers) Health(c *gin.Context) {
	tables, refreshedAt := h.SchemaCache.Stats()

	var totalCost float64
	h.Repo.Range(func(s *session.Session) {
		s.Mu.Lock()
		totalCost += s.TotalCost
		s.Mu.Unlock()
	})

	tableNames := make([]string, 0, tables)
	if res, err := h.Querier.Query(c.Request.Context(), h.Dialect.ListTablesQuery()); err != nil {
		h.Log.Warn("health table listing failed", "error", err)
	} else if len(res.Columns) > 0 {
		for _, row := range res.Rows {
			if name, ok := row[res.Columns[0]].(string); ok {
				tableNames = append(tableNames, name)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"uptimeSeconds": int(time.Since(h.startedAt).Seconds()),
		"sessions":      h.Repo.Len(),
		"totalCost":     totalCost,
		"schema": gin.H{
			"tables":      tables,
			"tableNames":  tableNames,
			"refreshedAt": refreshedAt,
		},
		"models":        h.Cfg.Models,
		"apiKeySet":     h.Cfg.APIKey != "",
		"wsSubscribers": h.Hub.Subscribers(),
	})
}

// DebugSessions exposes per-conversation counters for inspection.
func (h *Handlers) DebugSessions(c *gin.Context) {
	type sessionStat struct {
		ChatID        string  `json:"chatId"`
		UserEmail     string  `json:"userEmail,omitempty"`
		Messages      int     `json:"messages"`
		Summaries     int     `json:"summaries"`
		TotalCost     float64 `json:"totalCost"`
		HasCache      bool    `json:"hasCache"`
		WriteRejected bool    `json:"writeRejected,omitempty"`
	}

	stats := make([]sessionStat, 0)
	h.Repo.Range(func(s *session.Session) {
		s.Mu.Lock()
		stats = append(stats, sessionStat{
			ChatID:        s.ID,
			UserEmail:     s.UserEmail,
			Messages:      len(s.History),
			Summaries:     len(s.Summaries),
			TotalCost:     s.TotalCost,
			HasCache:      s.LastData != nil,
			WriteRejected: s.Flags["write_rejected"],
		})
		s.Mu.Unlock()
	})

	c.JSON(http.StatusOK, gin.H{"count": len(stats), "sessions": stats})
}
