package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/defectscope/defectscope/internal/domain/analysis"
	domsession "github.com/defectscope/defectscope/internal/domain/session"
	"github.com/defectscope/defectscope/internal/domain/vehicle"
)

type fakeConn struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakeConn) PublishMsg(msg *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func TestAnalysisCompleted_Publishes(t *testing.T) {
	conn := &fakeConn{}
	p := newPublisher(conn, "defectscope", zap.NewNop())

	s := &domsession.Session{
		ID:      "s1",
		Vehicle: vehicle.New("honda", "accord", "2003"),
		Analysis: analysis.Result{
			ComponentCounts: []analysis.Count{{Label: "BRAKES", Count: 2}, {Label: "ENGINE", Count: 1}},
			Risk:            analysis.Risk{Score: 5, Level: analysis.RiskModerate},
		},
		Embeddings: domsession.EmbeddingSummary{Indexed: 2, Failed: 1},
	}
	if err := p.AnalysisCompleted(context.Background(), s); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if len(conn.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(conn.msgs))
	}
	msg := conn.msgs[0]
	if msg.Subject != "defectscope.analysis.completed" {
		t.Errorf("subject = %q", msg.Subject)
	}
	var got AnalysisCompleted
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.SessionID != "s1" || got.Make != "HONDA" || got.RiskLevel != "moderate" ||
		got.TopComponent != "BRAKES" || got.Indexed != 2 || got.Failed != 1 {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestAnalysisCompleted_InjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	conn := &fakeConn{}
	if err := newPublisher(conn, "", zap.NewNop()).AnalysisCompleted(ctx, &domsession.Session{ID: "s1"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if got := conn.msgs[0].Header.Get("traceparent"); got == "" {
		t.Error("expected traceparent header")
	}
	if conn.msgs[0].Subject != SubjectAnalysisCompleted {
		t.Errorf("subject without prefix = %q", conn.msgs[0].Subject)
	}
}

func TestAnalysisCompleted_PublishError(t *testing.T) {
	conn := &fakeConn{err: nats.ErrConnectionClosed}
	err := newPublisher(conn, "x", zap.NewNop()).AnalysisCompleted(context.Background(), &domsession.Session{})
	if !errors.Is(err, nats.ErrConnectionClosed) {
		t.Fatalf("expected wrapped connection error, got %v", err)
	}
}

func TestConnect_EmptyURLIsNoop(t *testing.T) {
	p, err := Connect("", "defectscope", zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Enabled() {
		t.Error("publisher without url should be disabled")
	}
	if err := p.AnalysisCompleted(context.Background(), &domsession.Session{}); err != nil {
		t.Errorf("no-op publish returned %v", err)
	}
	p.Close()
}

func TestHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	c := (*headerCarrier)(msg)

	if c.Get("missing") != "" || c.Keys() != nil {
		t.Fatal("empty carrier should report nothing")
	}
	c.Set("traceparent", "00-abc-def-01")
	if c.Get("traceparent") != "00-abc-def-01" {
		t.Errorf("Get = %q", c.Get("traceparent"))
	}
	if len(c.Keys()) != 1 {
		t.Errorf("Keys = %v", c.Keys())
	}
}
