package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/expensync/expensync/internal/broadcast"
	"github.com/expensync/expensync/internal/handler/dto"
	"github.com/expensync/expensync/internal/service"
	"github.com/expensync/expensync/internal/testutil"
)

func TestHandler_NotFound(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nonexistent", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	var response MessageResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Message != "Resource not found" {
		t.Errorf("unexpected message: %s", response.Message)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"validation", &service.ValidationError{Field: "price", Message: "must be greater than 0"}, http.StatusBadRequest, "price: must be greater than 0"},
		{"list not found", service.ErrListNotFound, http.StatusNotFound, "List not found"},
		{"wrapped not found", fmt.Errorf("lookup: %w", service.ErrExpenseNotFound), http.StatusNotFound, "lookup: Expense not found"},
		{"conflict", service.ErrListNameTaken, http.StatusConflict, "List name already exists"},
		{"broadcast not initialized", fmt.Errorf("publish: %w", broadcast.ErrNotInitialized), http.StatusInternalServerError, "Real-time channel not initialized"},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, testutil.DiscardLogger(), httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body MessageResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", body.Message, tt.wantMessage)
			}
		})
	}
}

func TestPathID(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := pathID(w, r, "id"); ok {
			w.WriteHeader(http.StatusOK)
		}
	})

	tests := []struct {
		path string
		want int
	}{
		{"/things/65a1b2c3d4e5f6a7b8c9d0e1", http.StatusOK},
		{"/things/not-an-id", http.StatusBadRequest},
		{"/things/65a1b2c3d4e5f6a7b8c9d0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestWriteRequestError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantMessage string
	}{
		{"invalid date", dto.ErrInvalidDate, "date: " + dto.ErrInvalidDate.Error()},
		{"wrapped invalid date", fmt.Errorf("parse: %w", dto.ErrInvalidDate), "date: parse: " + dto.ErrInvalidDate.Error()},
		{"other", errors.New("name: too long"), "name: too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeRequestError(rec, tt.err)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			var body MessageResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", body.Message, tt.wantMessage)
			}
		})
	}
}
