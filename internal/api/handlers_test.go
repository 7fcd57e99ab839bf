package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/susu3304/tripledger/internal/config"
	"github.com/susu3304/tripledger/internal/db"
	"github.com/susu3304/tripledger/internal/ledger"
	"github.com/susu3304/tripledger/internal/lifecycle"
	"github.com/susu3304/tripledger/internal/session"
)

const testSecret = "test-secret-123"

func newTestAPI(t *testing.T) (*API, *lifecycle.Service) {
	t.Helper()
	forms, err := ledger.DefaultForms()
	require.NoError(t, err)
	ctrl, err := lifecycle.NewController(forms, "daily", lifecycle.WithLocation(time.UTC))
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	store := db.NewMemory()
	svc := lifecycle.NewService(ctrl, session.NewManager(), store, log, time.Second)
	cfg := &config.Config{
		JWTSecret: testSecret,
		WebBind:   "127.0.0.1:0",
		Location:  time.UTC,
	}
	return New(cfg, svc, store, log), svc
}

type client struct {
	t     *testing.T
	h     http.Handler
	token string
}

func (c client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.h.ServeHTTP(w, req)
	return w
}

func (c client) turn(text string) []string {
	c.t.Helper()
	body, err := json.Marshal(map[string]string{"text": text})
	require.NoError(c.t, err)
	w := c.do("POST", "/api/turns", string(body))
	require.Equal(c.t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Messages []string `json:"messages"`
	}
	require.NoError(c.t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Messages
}

func authed(t *testing.T, a *API, userID string) client {
	t.Helper()
	token, err := a.IssueToken(userID, "tester", time.Hour)
	require.NoError(t, err)
	return client{t: t, h: a.Handler(), token: token}
}

func TestHealthAndLogin(t *testing.T) {
	a, _ := newTestAPI(t)
	anon := client{t: t, h: a.Handler()}

	w := anon.do("GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = anon.do("GET", "/api/auth/login", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "login needs OAuth credentials")

	w = anon.do("GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	a, _ := newTestAPI(t)

	other := &API{jwtSecret: []byte("another-secret")}
	forged, err := other.IssueToken("42", "mallory", time.Hour)
	require.NoError(t, err)
	expired, err := a.IssueToken("42", "tester", -time.Minute)
	require.NoError(t, err)
	anonymous, err := a.IssueToken("", "nobody", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Token abc"},
		{"garbage", "Bearer abc"},
		{"wrong secret", "Bearer " + forged},
		{"expired", "Bearer " + expired},
		{"no user", "Bearer " + anonymous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/session", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			a.Handler().ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestTurnValidation(t *testing.T) {
	a, _ := newTestAPI(t)
	c := authed(t, a, "42")

	assert.Equal(t, http.StatusBadRequest, c.do("POST", "/api/turns", "{").Code)
	assert.Equal(t, http.StatusBadRequest, c.do("POST", "/api/turns", `{"text":"   "}`).Code)
}

func TestDraftOverHTTP(t *testing.T) {
	a, svc := newTestAPI(t)
	c := authed(t, a, "42")

	assert.Equal(t, http.StatusNotFound, c.do("GET", "/api/session", "").Code)

	msgs := c.turn("vehicle MH12AB1234 date 05/03/2025")
	require.Len(t, msgs, 2)
	assert.Equal(t, "Noted: Vehicle MH12AB1234; Date 05/03/2025.", msgs[0])
	require.NotNil(t, svc.Session("web:42"), "web drafts are keyed by the token's user")

	w := c.do("GET", "/api/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sess struct {
		State      string   `json:"state"`
		EntityCode string   `json:"entity_code"`
		Missing    []string `json:"missing"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&sess))
	assert.Equal(t, "collecting", sess.State)
	assert.Equal(t, "MH12AB1234", sess.EntityCode)
	assert.Equal(t, []string{"Total cash collection", "Online collection", "Diesel", "Adda"}, sess.Missing)

	// Another user does not see this draft.
	assert.Equal(t, http.StatusNotFound, authed(t, a, "7").do("GET", "/api/session", "").Code)

	c.turn("cash collection 5000\nonline collection 1000\ndiesel 500\nadda 300")
	msgs = c.turn("yes")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Saved daily for MH12AB1234 on 05/03/2025 (submitted)")
	assert.Equal(t, http.StatusNotFound, c.do("GET", "/api/session", "").Code)

	w = c.do("GET", "/api/forms/daily/records", "")
	require.Equal(t, http.StatusOK, w.Code)
	var records []ledger.Record
	require.NoError(t, json.NewDecoder(w.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, "web:42", records[0].SubmittedBy)
	assert.Equal(t, int64(1), records[0].Version)

	w = c.do("GET", "/api/forms/daily/records?entity=ka01x9999", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = c.do("GET", "/api/forms/daily/records/mh12ab1234/05-03-2025", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rec ledger.Record
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.Equal(t, "MH12AB1234_05/03/2025", rec.Key)
	assert.Equal(t, "4200", rec.NetCash.String())

	assert.Equal(t, http.StatusNotFound, c.do("GET", "/api/forms/daily/records/MH12AB1234/06-03-2025", "").Code)
	assert.Equal(t, http.StatusBadRequest, c.do("GET", "/api/forms/daily/records/MH12AB1234/31-02-2025", "").Code)
	assert.Equal(t, http.StatusNotFound, c.do("GET", "/api/forms/weekly/records", "").Code)
}

func TestClearSession(t *testing.T) {
	a, _ := newTestAPI(t)
	c := authed(t, a, "42")

	assert.Equal(t, http.StatusNotFound, c.do("DELETE", "/api/session", "").Code)
	c.turn("diesel 500")
	w := c.do("DELETE", "/api/session", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"draft cleared"}`, w.Body.String())
	assert.Equal(t, http.StatusNotFound, c.do("GET", "/api/session", "").Code)
}

func TestListForms(t *testing.T) {
	a, _ := newTestAPI(t)
	w := authed(t, a, "42").do("GET", "/api/forms", "")
	require.Equal(t, http.StatusOK, w.Code)

	var forms []struct {
		Name   string `json:"name"`
		Fields []struct {
			ID       string `json:"id"`
			Required bool   `json:"required"`
		} `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&forms))
	require.Len(t, forms, 2)
	assert.Equal(t, "daily", forms[0].Name)
	assert.Equal(t, "booking", forms[1].Name)
	assert.Equal(t, "entity", forms[0].Fields[0].ID)
	assert.True(t, forms[0].Fields[0].Required)
}
