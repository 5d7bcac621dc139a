package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoQuestAPI/internal/store/memory"
	"ecoQuestAPI/services"
)

var webhookKey = []byte("super-secret-signing-key")

func newSignedWebhook(t *testing.T) (*WebhookHandler, *memory.Store) {
	t.Helper()
	st := memory.New()
	h, err := NewWebhookHandler(services.NewUserService(st), "whsec_"+base64.StdEncoding.EncodeToString(webhookKey))
	require.NoError(t, err)
	return h, st
}

func signedRequest(body string, ts time.Time, sig string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(body))
	unix := strconv.FormatInt(ts.Unix(), 10)
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", unix)
	if sig == "" {
		sig = "v1," + svixSignature(webhookKey, "msg_1", unix, []byte(body))
	}
	req.Header.Set("svix-signature", sig)
	return req
}

const userCreated = `{
  "type": "user.created",
  "object": "event",
  "data": {
    "id": "user_2x",
    "first_name": "Ana",
    "last_name": "Lima",
    "image_url": "https://img.clerk.com/ana.png",
    "primary_email_address_id": "idn_2",
    "email_addresses": [
      {"id": "idn_1", "email_address": "old@example.com"},
      {"id": "idn_2", "email_address": "ana@example.com"}
    ]
  }
}`

func TestClerkWebhookCreatesProfile(t *testing.T) {
	h, st := newSignedWebhook(t)

	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(userCreated, time.Now(), ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p, err := st.GetProfile(context.Background(), "user_2x")
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima", p.DisplayName)
	assert.Equal(t, "ana@example.com", p.Email)
	assert.Equal(t, "https://img.clerk.com/ana.png", p.PhotoURL)
	assert.Zero(t, p.TotalPoints)
}

func TestClerkWebhookAcceptsAnyListedSignature(t *testing.T) {
	h, _ := newSignedWebhook(t)
	now := time.Now()
	good := svixSignature(webhookKey, "msg_1", strconv.FormatInt(now.Unix(), 10), []byte(userCreated))

	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(userCreated, now, "v1,bm9wZQ== v1,"+good))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClerkWebhookRejects(t *testing.T) {
	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{"wrong signature", func() *http.Request {
			return signedRequest(userCreated, time.Now(), "v1,bm9wZQ==")
		}},
		{"tampered body", func() *http.Request {
			req := signedRequest(userCreated, time.Now(), "")
			req.Body = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Replace(userCreated, "Ana", "Eve", 1))).Body
			return req
		}},
		{"stale timestamp", func() *http.Request {
			return signedRequest(userCreated, time.Now().Add(-time.Hour), "")
		}},
		{"missing headers", func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(userCreated))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, st := newSignedWebhook(t)
			rec := httptest.NewRecorder()
			h.HandleClerkWebhook(rec, tt.req())
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			n, err := st.CountProfiles(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestClerkWebhookIgnoresOtherEvents(t *testing.T) {
	h, st := newSignedWebhook(t)
	body := `{"type":"session.created","data":{}}`

	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(body, time.Now(), ""))
	assert.Equal(t, http.StatusOK, rec.Code)

	n, err := st.CountProfiles(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewWebhookHandlerBadSecret(t *testing.T) {
	_, err := NewWebhookHandler(nil, "whsec_***not base64***")
	assert.Error(t, err)
}
