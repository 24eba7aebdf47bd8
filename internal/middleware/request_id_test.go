package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{"uuid kept", "3f2b8c1e-9d4a-4b6e-8f21-0c5d7a9e1b40", true},
		{"ulid kept", "01HZX3K9V7Q8RM2T5N4B6C8D0E", true},
		{"free text replaced", "req-123", false},
		{"log injection replaced", "abc\nlevel=ERROR", false},
		{"missing minted", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.inbound != "" {
				req.Header.Set(RequestIDHeader, tt.inbound)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get(RequestIDHeader); got != seen {
				t.Errorf("header = %q, context = %q", got, seen)
			}
			if tt.keep {
				if seen != tt.inbound {
					t.Errorf("request id = %q, want %q", seen, tt.inbound)
				}
				return
			}
			if seen == tt.inbound {
				t.Fatalf("request id %q was not replaced", seen)
			}
			if _, err := ulid.ParseStrict(seen); err != nil {
				t.Errorf("minted id %q is not a ULID: %v", seen, err)
			}
		})
	}
}
