// Package nats publishes analysis events to NATS with trace context in message headers.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	domsession "github.com/defectscope/defectscope/internal/domain/session"
)

// SubjectAnalysisCompleted is appended to the configured subject prefix.
const SubjectAnalysisCompleted = "analysis.completed"

// AnalysisCompleted is emitted after a session finishes its analysis and index build.
type AnalysisCompleted struct {
	SessionID    string    `json:"session_id"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Year         string    `json:"year"`
	VIN          string    `json:"vin,omitempty"`
	Complaints   int       `json:"complaints"`
	Indexed      int       `json:"indexed"`
	Failed       int       `json:"failed"`
	Recalls      int       `json:"recalls"`
	CaseStrength float64   `json:"case_strength_score"`
	RiskLevel    string    `json:"risk_level"`
	TopComponent string    `json:"top_component,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// msgPublisher is the subset of *nats.Conn used for publishing.
type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Publisher sends events. A Publisher without a connection drops events silently.
type Publisher struct {
	conn   msgPublisher
	close  func()
	prefix string
	logger *zap.Logger
}

// Connect dials NATS. An empty url returns a no-op publisher.
func Connect(url, prefix string, logger *zap.Logger) (*Publisher, error) {
	if url == "" {
		return &Publisher{logger: logger}, nil
	}
	nc, err := nats.Connect(url,
		nats.Name("defectscope"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.Info("Connected to NATS", zap.String("url", nc.ConnectedUrlRedacted()))
	return &Publisher{conn: nc, close: nc.Close, prefix: prefix, logger: logger}, nil
}

// newPublisher wraps an existing connection; used by tests.
func newPublisher(conn msgPublisher, prefix string, logger *zap.Logger) *Publisher {
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// Enabled reports whether events are actually sent.
func (p *Publisher) Enabled() bool { return p != nil && p.conn != nil }

// Subject joins the prefix and an event name.
func (p *Publisher) Subject(name string) string {
	prefix := strings.Trim(p.prefix, ".")
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// NewAnalysisCompleted builds the event for a finished session.
func NewAnalysisCompleted(s *domsession.Session) AnalysisCompleted {
	ev := AnalysisCompleted{
		SessionID:    s.ID,
		Make:         s.Vehicle.Make,
		Model:        s.Vehicle.Model,
		Year:         s.Vehicle.Year,
		VIN:          s.VIN,
		Complaints:   len(s.Complaints),
		Indexed:      s.Embeddings.Indexed,
		Failed:       s.Embeddings.Failed,
		Recalls:      len(s.Recalls),
		CaseStrength: s.Analysis.CaseStrengthScore,
		RiskLevel:    s.Analysis.Risk.Level,
		CompletedAt:  s.CreatedAt,
	}
	if top := s.Analysis.TopComponents(1); len(top) > 0 {
		ev.TopComponent = top[0].Label
	}
	return ev
}

// AnalysisCompleted publishes a completion event for s.
func (p *Publisher) AnalysisCompleted(ctx context.Context, s *domsession.Session) error {
	if !p.Enabled() {
		return nil
	}
	return publish(ctx, p.conn, p.Subject(SubjectAnalysisCompleted), NewAnalysisCompleted(s))
}

// Close closes the connection.
func (p *Publisher) Close() {
	if p != nil && p.close != nil {
		p.close()
	}
}

func publish[T any](ctx context.Context, conn msgPublisher, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	if err := conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// headerCarrier adapts nats.Msg headers to propagation.TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}
