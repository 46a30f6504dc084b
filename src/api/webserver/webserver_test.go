package webserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/obrc/blacklist/src/config"
	"github.com/obrc/blacklist/src/listing"
	"github.com/obrc/blacklist/src/voting"
)

var secret = []byte("test-secret")

type fakeTickets struct {
	rows     []voting.Ticket
	evidence []voting.EvidenceVote
	status   voting.Status
	limit    int
}

func (f *fakeTickets) Tickets(_ context.Context, status voting.Status, limit int) ([]voting.Ticket, error) {
	f.status, f.limit = status, limit
	var out []voting.Ticket
	for _, t := range f.rows {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTickets) Ticket(_ context.Context, id uint64) (*voting.Ticket, error) {
	for _, t := range f.rows {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, voting.ErrTicketNotFound
}

func (f *fakeTickets) EvidenceForChannel(_ context.Context, channelID string) ([]voting.EvidenceVote, error) {
	var out []voting.EvidenceVote
	for _, v := range f.evidence {
		if v.TicketChannelID == channelID {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeLists struct {
	people map[listing.List][]listing.Person
	orgs   map[listing.List][]listing.Organization
}

func (f *fakeLists) People(_ context.Context, l listing.List) ([]listing.Person, error) {
	return f.people[l], nil
}

func (f *fakeLists) Organizations(_ context.Context, l listing.List) ([]listing.Organization, error) {
	return f.orgs[l], nil
}

func newTestRouter(t *testing.T, rate int) (*gin.Engine, *fakeTickets) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ticket := voting.Ticket{ID: 7, TicketChannelID: "c7", TicketType: voting.KindAddPerson, TargetName: "bob", Status: voting.StatusActive}
	require.NoError(t, ticket.SetPayload(voting.Payload{Reason: "scam", ProofURLs: []string{"https://p"}}))
	tickets := &fakeTickets{
		rows: []voting.Ticket{
			ticket,
			{ID: 8, TicketType: voting.KindRemovePerson, Status: voting.StatusCompleted, FinalResult: "PASSED:3:1"},
		},
		evidence: []voting.EvidenceVote{{ID: 1, TicketChannelID: "c7", Status: voting.StatusActive}},
	}
	lists := &fakeLists{
		people: map[listing.List][]listing.Person{listing.Blacklist: {{DiscordID: "1", DiscordName: "bob"}}},
		orgs:   map[listing.List][]listing.Organization{listing.Greylist: {{CompanyName: "Acme"}}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg := config.APIConfig{JWTSecret: string(secret), RateLimit: rate}
	return New(ctx, cfg, Stores{Tickets: tickets, Lists: lists}), tickets
}

func get(t *testing.T, r http.Handler, path string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth {
		tok, err := IssueToken("ops", secret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthIsPublic(t *testing.T) {
	r, _ := newTestRouter(t, 0)
	w := get(t, r, "/v1/health", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSecuredRoutesNeedToken(t *testing.T) {
	r, _ := newTestRouter(t, 0)
	for _, path := range []string{"/v1/tickets", "/v1/tickets/7", "/v1/lists/blacklist", "/v1/lists/blacklist/export"} {
		assert.Equal(t, http.StatusUnauthorized, get(t, r, path, false).Code, path)
	}
}

func TestRejectsForeignSignatures(t *testing.T) {
	r, _ := newTestRouter(t, 0)

	other, err := IssueToken("ops", []byte("other"), time.Hour)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ops"}).SignedString(secret)
	require.NoError(t, err)

	for _, tok := range []string{other, noExp} {
		req := httptest.NewRequest(http.MethodGet, "/v1/tickets", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}

func TestListTickets(t *testing.T) {
	r, store := newTestRouter(t, 0)

	w := get(t, r, "/v1/tickets?status=active&limit=1000", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, voting.StatusActive, store.status)
	assert.Equal(t, maxPageSize, store.limit)

	var body struct {
		Count   int              `json:"count"`
		Tickets []map[string]any `json:"tickets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.EqualValues(t, 7, body.Tickets[0]["id"])
	assert.NotContains(t, body.Tickets[0], "proposal_data")
	assert.Equal(t, "scam", body.Tickets[0]["proposal"].(map[string]any)["reason"])

	assert.Equal(t, http.StatusBadRequest, get(t, r, "/v1/tickets?status=open", true).Code)
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/v1/tickets?limit=-1", true).Code)
}

func TestGetTicket(t *testing.T) {
	r, _ := newTestRouter(t, 0)

	w := get(t, r, "/v1/tickets/7", true)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body["evidence"], 1)

	assert.Equal(t, http.StatusNotFound, get(t, r, "/v1/tickets/99", true).Code)
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/v1/tickets/abc", true).Code)
}

func TestLists(t *testing.T) {
	r, _ := newTestRouter(t, 0)

	w := get(t, r, "/v1/lists/blacklist", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"discord_name":"bob"`)

	w = get(t, r, "/v1/lists/greylist_coo", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"company_name":"Acme"`)

	assert.Equal(t, http.StatusNotFound, get(t, r, "/v1/lists/whitelist", true).Code)
}

func TestExportList(t *testing.T) {
	r, _ := newTestRouter(t, 0)

	w := get(t, r, "/v1/lists/blacklist/export", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "blacklist_people_")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Blacklist", "B2")
	require.NoError(t, err)
	assert.Equal(t, "bob", v)
}

func TestRateLimit(t *testing.T) {
	r, _ := newTestRouter(t, 2)
	assert.Equal(t, http.StatusOK, get(t, r, "/v1/tickets", true).Code)
	assert.Equal(t, http.StatusOK, get(t, r, "/v1/tickets", true).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, r, "/v1/tickets", true).Code)
	assert.Equal(t, http.StatusOK, get(t, r, "/v1/health", false).Code)
}

func TestRateLimiterWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 1, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))
	rl.cleanup()
	assert.Len(t, rl.requests, 1)
}
