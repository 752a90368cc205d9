package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
)

func TestCreateSessionHandler_InvalidBody(t *testing.T) {
	s := &Server{}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := s.createSessionHandler(c)
	if assert.Error(t, err) {
		he, ok := err.(*echo.HTTPError)
		if assert.True(t, ok) {
			assert.Equal(t, http.StatusBadRequest, he.Code)
		}
	}
}

func TestListSessionsHandler_Validation(t *testing.T) {
	s := &Server{}

	tests := []struct {
		name    string
		query   string
		wantErr int
		errMsg  string
	}{
		{
			name:    "invalid status value",
			query:   "status=bogus",
			wantErr: http.StatusBadRequest,
			errMsg:  "invalid status",
		},
		{
			name:    "invalid created_after",
			query:   "created_after=not-a-date",
			wantErr: http.StatusBadRequest,
			errMsg:  "invalid created_after",
		},
		{
			name:    "created_before wrong format (not RFC3339)",
			query:   "created_before=2024-01-01",
			wantErr: http.StatusBadRequest,
			errMsg:  "invalid created_before",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?"+tt.query, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := s.listSessionsHandler(c)
			if assert.Error(t, err) {
				he, ok := err.(*echo.HTTPError)
				if assert.True(t, ok, "expected echo.HTTPError") {
					assert.Equal(t, tt.wantErr, he.Code)
					assert.Contains(t, he.Message, tt.errMsg)
				}
			}
		})
	}
}

func TestGetSessionHandler_MissingID(t *testing.T) {
	s := &Server{}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := s.getSessionHandler(c)
	if assert.Error(t, err) {
		he, ok := err.(*echo.HTTPError)
		if assert.True(t, ok) {
			assert.Equal(t, http.StatusBadRequest, he.Code)
			assert.Contains(t, he.Message, "session id")
		}
	}
}

func TestCancelSessionHandler_MissingID(t *testing.T) {
	s := &Server{}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions//cancel", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := s.cancelSessionHandler(c)
	if assert.Error(t, err) {
		he, ok := err.(*echo.HTTPError)
		if assert.True(t, ok) {
			assert.Equal(t, http.StatusBadRequest, he.Code)
			assert.Contains(t, he.Message, "session id")
		}
	}
}
