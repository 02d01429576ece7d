package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benvon/jotjot/internal/alexa"
	"github.com/benvon/jotjot/internal/invocation"
	"github.com/benvon/jotjot/internal/request"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type routeFunc func(ctx context.Context, raw json.RawMessage) (any, error)

func (f routeFunc) Route(ctx context.Context, raw json.RawMessage) (any, error) { return f(ctx, raw) }

// fakeRouter mimics the invocation router's result shapes
func fakeRouter(ctx context.Context, raw json.RawMessage) (any, error) {
	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, invocation.ErrInvalidPayload
	}
	if _, ok := probe["request"]; ok {
		return alexa.NewResponseBuilder().Speak("Logged.").EndSession(true).Build(), nil
	}
	if probe["daily_report"] == true {
		return invocation.Response{StatusCode: http.StatusOK, Body: "Daily report process completed: " + request.InvocationID(ctx)}, nil
	}
	return invocation.Response{StatusCode: http.StatusBadRequest, Body: "Unrecognized event"}, nil
}

func newTestServer(cfg RouterConfig) http.Handler {
	return NewRouter(NewInvocationHandler(routeFunc(fakeRouter), nil), NewHealthChecker(), nil, cfg)
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestInvoke(t *testing.T) {
	t.Parallel()

	h := newTestServer(RouterConfig{})

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		check      func(t *testing.T, body []byte)
	}{
		{
			name:       "skill request returns the bare envelope",
			path:       "/alexa",
			body:       `{"version":"1.0","request":{"type":"LaunchRequest"}}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var env alexa.ResponseEnvelope
				if err := json.Unmarshal(body, &env); err != nil {
					t.Fatalf("decode envelope: %v", err)
				}
				if env.Version != "1.0" || env.Response.OutputSpeech == nil {
					t.Errorf("unexpected envelope %s", body)
				}
			},
		},
		{
			name:       "direct event carries its status",
			path:       "/invoke",
			body:       `{"daily_report": true}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp invocation.Response
				if err := json.Unmarshal(body, &resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Body, "Daily report process completed: ") {
					t.Errorf("unexpected response %+v", resp)
				}
				if strings.TrimPrefix(resp.Body, "Daily report process completed: ") == "" {
					t.Error("expected the middleware invocation id in the router context")
				}
			},
		},
		{
			name:       "unrecognized event is a 400",
			path:       "/invoke",
			body:       `{"hello": "world"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed payload is a 400",
			path:       "/alexa",
			body:       `[1, 2`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body []byte) {
				if !strings.Contains(string(body), "payload must be a JSON object") {
					t.Errorf("unexpected error body %s", body)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := post(h, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if w.Header().Get(request.InvocationIDHeader) == "" {
				t.Error("expected an invocation id header")
			}
			if tt.check != nil {
				tt.check(t, w.Body.Bytes())
			}
		})
	}
}

func TestInvokeRejectsNonJSON(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader("daily_report=true"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	newTestServer(RouterConfig{}).ServeHTTP(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", w.Code)
	}
}

func TestInvokeBodyTooLarge(t *testing.T) {
	t.Parallel()

	var called bool
	router := routeFunc(func(context.Context, json.RawMessage) (any, error) {
		called = true
		return nil, errors.New("unreachable")
	})
	h := NewRouter(NewInvocationHandler(router, nil), NewHealthChecker(), nil, RouterConfig{MaxRequestSize: 16})

	req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(`{"daily_report": true, "padding": "xxxxxxxx"}`))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1 // force the streaming limit rather than the header check
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
	if called {
		t.Error("router should not see an oversized payload")
	}
}

func TestRateLimitAppliesToInvocationRoutesOnly(t *testing.T) {
	t.Parallel()

	limited := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	h := newTestServer(RouterConfig{RateLimit: limited})

	if w := post(h, "/alexa", `{"request":{"type":"LaunchRequest"}}`); w.Code != http.StatusTooManyRequests {
		t.Errorf("/alexa status = %d, want 429", w.Code)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", w.Code)
	}
}

func TestTraceContextPropagation(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	h := newTestServer(RouterConfig{
		ServiceName:    "jotjot-test",
		TracerProvider: tp,
		Propagators:    propagation.TraceContext{},
	})

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(`{"daily_report": true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	spans := exporter.GetSpans()
	if len(spans) == 0 {
		t.Fatal("expected a server span")
	}
	span := spans[0]
	if got := span.SpanContext.TraceID().String(); got != traceID {
		t.Errorf("trace id = %s, want %s", got, traceID)
	}
	if !span.Parent.IsRemote() {
		t.Error("expected the span parent to come from the traceparent header")
	}
}
