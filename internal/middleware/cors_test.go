package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		allowed     []string
		origin      string
		method      string
		wantOrigin  string
		wantCreds   string
		wantStatus  int
		wantReached bool
	}{
		{
			name:        "explicit origin",
			allowed:     []string{"https://hub.example.com"},
			origin:      "https://hub.example.com",
			method:      http.MethodPost,
			wantOrigin:  "https://hub.example.com",
			wantCreds:   "true",
			wantStatus:  http.StatusOK,
			wantReached: true,
		},
		{
			name:        "wildcard has no credentials",
			allowed:     []string{"*"},
			origin:      "https://other.example.com",
			method:      http.MethodGet,
			wantOrigin:  "https://other.example.com",
			wantStatus:  http.StatusOK,
			wantReached: true,
		},
		{
			name:        "unknown origin",
			allowed:     []string{"https://hub.example.com"},
			origin:      "https://evil.example.com",
			method:      http.MethodGet,
			wantStatus:  http.StatusOK,
			wantReached: true,
		},
		{
			name:       "preflight",
			allowed:    []string{"*"},
			origin:     "https://hub.example.com",
			method:     http.MethodOptions,
			wantOrigin: "https://hub.example.com",
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reached := false
			h := CORS(tt.allowed)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/chat", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("allow-origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCreds {
				t.Fatalf("allow-credentials = %q, want %q", got, tt.wantCreds)
			}
			if reached != tt.wantReached {
				t.Fatalf("reached = %v, want %v", reached, tt.wantReached)
			}
		})
	}
}
