// Package notification delivers email messages, renders plain-text templates
// and keeps a short-lived log of every dispatch.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/livestock/claims/internal/platform/auth"
)

// ErrNotFound is returned for ids that were never dispatched or whose log
// entry has expired.
var ErrNotFound = errors.New("notification not found")

// Dispatch statuses.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// ---------------------------------------------------------------------------
// Message and Notification
// ---------------------------------------------------------------------------

// Message is one outbound email. HTML is sent as an alternative part when set.
type Message struct {
	ID      string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Notification is the logged outcome of a dispatch.
type Notification struct {
	ID        string            `json:"id"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Status    string            `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	SentAt    *time.Time        `json:"sent_at,omitempty"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, msg Message) error
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// TemplateClaimSubmission is the built-in template for claim submissions.
const TemplateClaimSubmission = "claim-submission"

// Template defines a reusable plain-text message.
type Template struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.RegisterTemplate(Template{
		ID:      TemplateClaimSubmission,
		Subject: "Prijava štete - {{insured}} - {{breed}} {{facility}}",
		Body: "Prijava štete na živini\n\n" +
			"Osiguranik: {{insured}}\n" +
			"Polisa: {{policy}}\n\n" +
			"Prijave:\n{{claims}}\n\n" +
			"Poslato: {{sent_at}}\n",
	})
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map in a single pass, so placeholders inside the values are
// never expanded. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	pairs := make([]string, 0, 2*len(data))
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(t.Subject), r.Replace(t.Body), nil
}

// ---------------------------------------------------------------------------
// Mock Sender (test double)
// ---------------------------------------------------------------------------

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []Message
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, msg)
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded messages.
func (m *MockEmailSender) Calls() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.calls))
	copy(out, m.calls)
	return out
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

// Manager sends messages and logs each dispatch for a limited time.
type Manager struct {
	sender    EmailSender
	recipient string
	log       *cache.Cache
}

// NewManager constructs a Manager. Messages without a recipient go to
// defaultRecipient. Log entries expire after ttl.
func NewManager(sender EmailSender, defaultRecipient string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		sender:    sender,
		recipient: defaultRecipient,
		log:       cache.New(ttl, ttl/2),
	}
}

// Send assigns an id, dispatches the message and logs the outcome. The
// returned notification is set even when sending fails.
func (m *Manager) Send(ctx context.Context, msg Message, metadata map[string]string) (*Notification, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if strings.TrimSpace(msg.To) == "" {
		msg.To = m.recipient
	}
	n := &Notification{
		ID:        msg.ID,
		Recipient: msg.To,
		Subject:   msg.Subject,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	}

	var sendErr error
	if msg.To == "" {
		sendErr = errors.New("no recipient configured")
	} else {
		sendErr = m.sender.SendEmail(ctx, msg)
	}

	if sendErr != nil {
		n.Status = StatusFailed
		n.Error = sendErr.Error()
	} else {
		n.Status = StatusSent
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
	}
	m.log.Set(n.ID, *n, cache.DefaultExpiration)

	if sendErr != nil {
		return n, fmt.Errorf("send %s: %w", n.ID, sendErr)
	}
	return n, nil
}

// Get returns the logged outcome of a dispatch.
func (m *Manager) Get(id string) (*Notification, error) {
	v, ok := m.log.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	n := v.(Notification)
	return &n, nil
}

// ---------------------------------------------------------------------------
// HTTP Handler
// ---------------------------------------------------------------------------

// Handler exposes the dispatch log over HTTP.
type Handler struct {
	manager *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

// RegisterRoutes registers the notification routes on the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications/:id", h.HandleGet, auth.RequireRole(auth.RoleClerk))
}

// HandleGet handles GET /notifications/:id.
func (h *Handler) HandleGet(c echo.Context) error {
	n, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, n)
}
