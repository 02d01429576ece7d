package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handlerStatus int
		writeBody     bool
		wantStatus    int64
	}{
		{
			name:          "skill request",
			method:        http.MethodPost,
			path:          "/alexa",
			handlerStatus: http.StatusOK,
			wantStatus:    http.StatusOK,
		},
		{
			name:          "not found",
			method:        http.MethodGet,
			path:          "/notfound",
			handlerStatus: http.StatusNotFound,
			wantStatus:    http.StatusNotFound,
		},
		{
			name:       "implicit 200 on write",
			method:     http.MethodGet,
			path:       "/healthz",
			writeBody:  true,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.InfoLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.writeBody {
					_, _ = w.Write([]byte("ok"))
					return
				}
				w.WriteHeader(tt.handlerStatus)
			})

			w := httptest.NewRecorder()
			InvocationID(Logging(zap.New(core))(handler)).ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("expected one http_request entry, got %d", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["status_code"] != tt.wantStatus {
				t.Errorf("status_code = %v, want %d", fields["status_code"], tt.wantStatus)
			}
			if fields["method"] != tt.method || fields["path"] != tt.path {
				t.Errorf("unexpected fields %v", fields)
			}
			if fields["invocation_id"] == "" {
				t.Error("expected invocation_id to be logged")
			}
		})
	}
}
