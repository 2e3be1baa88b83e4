package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mariahq/maria/internal/reconcile"
)

type fakeStarter struct {
	mu      sync.Mutex
	started []string // contactKey|name
}

func (s *fakeStarter) StartConversation(ctx context.Context, contactKey, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, contactKey+"|"+displayName)
	return nil
}

func (s *fakeStarter) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.started))
	copy(out, s.started)
	return out
}

type fakeRecords struct {
	record reconcile.Record
}

func (f *fakeRecords) GetRecord(ctx context.Context, recordID string) (reconcile.Record, error) {
	return f.record, nil
}

func postJSON(t *testing.T, h *MondayHandler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/monday", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.Handle(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestMondayChallengeEchoed(t *testing.T) {
	t.Parallel()
	h := NewMondayHandler(nil, &fakeStarter{}, &fakeRecords{}, "secret")

	rec := postJSON(t, h, `{"challenge":"abc123"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"challenge":"abc123"}`, rec.Body.String())
}

func TestMondayEventStartsConversation(t *testing.T) {
	t.Parallel()
	starter := &fakeStarter{}
	records := &fakeRecords{record: reconcile.Record{
		ID:    "501",
		Name:  "Jane Doe",
		Phone: "+56 9 1234 5678",
	}}
	h := NewMondayHandler(nil, starter, records, "")

	rec := postJSON(t, h, `{"event":{"pulseId":501}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool { return len(starter.snapshot()) == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "whatsapp:+56912345678|Jane Doe", starter.snapshot()[0])
}

func TestMondayEventRequiresValidJWT(t *testing.T) {
	t.Parallel()
	starter := &fakeStarter{}
	h := NewMondayHandler(nil, starter, &fakeRecords{}, "signing-secret")

	rec := postJSON(t, h, `{"event":{"pulseId":501}}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, h, `{"event":{"pulseId":501}}`, map[string]string{"Authorization": "not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, starter.snapshot())
}

func TestMondayEventAcceptsSignedJWT(t *testing.T) {
	t.Parallel()
	starter := &fakeStarter{}
	records := &fakeRecords{record: reconcile.Record{Name: "Jane", Phone: "+56911111111"}}
	h := NewMondayHandler(nil, starter, records, "signing-secret")

	token, err := jwt.New(jwt.SigningMethodHS256).SignedString([]byte("signing-secret"))
	require.NoError(t, err)

	rec := postJSON(t, h, `{"event":{"pulseId":77}}`, map[string]string{"Authorization": token})
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Eventually(t, func() bool { return len(starter.snapshot()) == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestMondayEventWithoutPulseIgnored(t *testing.T) {
	t.Parallel()
	starter := &fakeStarter{}
	h := NewMondayHandler(nil, starter, &fakeRecords{}, "")

	rec := postJSON(t, h, `{"event":{}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, starter.snapshot())
}

func TestMondayOversizedBodyRejected(t *testing.T) {
	t.Parallel()
	h := NewMondayHandler(nil, &fakeStarter{}, &fakeRecords{}, "")
	rec := postJSON(t, h, `{"pad":"`+strings.Repeat("x", int(webhookMaxBodyBytes))+`"}`, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
