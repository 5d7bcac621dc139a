package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ecoQuestAPI/internal/identity"
	"ecoQuestAPI/internal/types/clerk"
	"ecoQuestAPI/internal/types/user"
	"ecoQuestAPI/services"
)

const (
	webhookMaxBody   = 1 << 20
	webhookTolerance = 5 * time.Minute
)

var errBadSignature = errors.New("invalid webhook signature")

type WebhookHandler struct {
	userService *services.UserService
	secret      []byte
	now         func() time.Time
}

// NewWebhookHandler takes the Clerk signing secret in its "whsec_<base64>"
// form. An empty secret disables verification.
func NewWebhookHandler(userService *services.UserService, signingSecret string) (*WebhookHandler, error) {
	h := &WebhookHandler{userService: userService, now: time.Now}
	if signingSecret == "" {
		return h, nil
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(signingSecret, "whsec_"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode CLERK_WEBHOOK_SECRET: %w", err)
	}
	h.secret = key
	return h, nil
}

func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, webhookMaxBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	if err := h.verify(r.Header, body); err != nil {
		log.Warn().Err(err).Msg("HandleClerkWebhook: rejected")
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event clerk.ClerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	log.Info().Str("type", event.Type).Msg("HandleClerkWebhook: received")

	switch event.Type {
	case "user.created", "user.updated":
		var data clerk.ClerkUserData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			respondWithError(w, http.StatusBadRequest, "Error parsing user data")
			return
		}
		if _, err := h.userService.EnsureProfile(ctx, identityFromWebhook(&data)); err != nil {
			respondWithServiceError(w, "HandleClerkWebhook", err)
			return
		}
	default:
		log.Debug().Str("type", event.Type).Msg("HandleClerkWebhook: ignored event")
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func identityFromWebhook(d *clerk.ClerkUserData) user.Identity {
	photo := d.ImageURL
	if photo == "" {
		photo = d.ProfileImageURL
	}
	return user.Identity{
		UID:         d.ID,
		Email:       d.PrimaryEmail(),
		DisplayName: identity.DisplayName(d.FirstName, d.LastName, d.Username),
		PhotoURL:    photo,
	}
}

// verify checks a Svix signature: base64(HMAC-SHA256(key, id.timestamp.body))
// against every "v1,<sig>" entry of the svix-signature header.
func (h *WebhookHandler) verify(header http.Header, body []byte) error {
	if h.secret == nil {
		log.Warn().Msg("HandleClerkWebhook: CLERK_WEBHOOK_SECRET not set, skipping signature verification")
		return nil
	}

	msgID := header.Get("svix-id")
	ts := header.Get("svix-timestamp")
	sigs := header.Get("svix-signature")
	if msgID == "" || ts == "" || sigs == "" {
		return fmt.Errorf("%w: missing svix headers", errBadSignature)
	}

	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", errBadSignature)
	}
	if d := h.now().Sub(time.Unix(sec, 0)); d > webhookTolerance || d < -webhookTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", errBadSignature)
	}

	expected := svixSignature(h.secret, msgID, ts, body)
	for _, part := range strings.Fields(sigs) {
		version, sig, ok := strings.Cut(part, ",")
		if !ok || version != "v1" {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return errBadSignature
}

func svixSignature(key []byte, msgID, ts string, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msgID + "." + ts + "."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
