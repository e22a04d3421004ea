package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"storefront/internal/domain"
	"storefront/internal/identity"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const dedupePrefix = "webhook:identity:"

// IdentityEnvelope is the outer shape of an identity webhook delivery
type IdentityEnvelope struct {
	Type string          `json:"type" validate:"required"`
	Data json.RawMessage `json:"data" validate:"required"`
}

// identityPayload accepts the canonical field names as well as the
// provider's native ones.
type identityPayload struct {
	ExternalID string   `json:"externalId"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	EmailList  []string `json:"emailList"`
	AvatarURL  string   `json:"avatarUrl"`

	ID             string `json:"id"`
	NativeFirst    string `json:"first_name"`
	NativeLast     string `json:"last_name"`
	ImageURL       string `json:"image_url"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

func (p identityPayload) event(eventType domain.IdentityEventType) domain.IdentityEvent {
	event := domain.IdentityEvent{
		Type:       eventType,
		ExternalID: firstNonEmpty(p.ExternalID, p.ID),
		FirstName:  firstNonEmpty(p.FirstName, p.NativeFirst),
		LastName:   firstNonEmpty(p.LastName, p.NativeLast),
		EmailList:  p.EmailList,
		AvatarURL:  firstNonEmpty(p.AvatarURL, p.ImageURL),
	}
	if len(event.EmailList) == 0 {
		for _, e := range p.EmailAddresses {
			event.EmailList = append(event.EmailList, e.EmailAddress)
		}
	}
	return event
}

// WebhookResponse acknowledges a delivery
type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// WebhookHandler receives identity lifecycle events
type WebhookHandler struct {
	identities *identity.Service
	redis      *redis.Client
	dedupeTTL  time.Duration
	logger     *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler. redisClient may be nil, in
// which case redelivered events are simply reconciled again.
func NewWebhookHandler(identities *identity.Service, redisClient *redis.Client, dedupeTTL time.Duration, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		identities: identities,
		redis:      redisClient,
		dedupeTTL:  dedupeTTL,
		logger:     logger,
	}
}

// RegisterRoutes registers the webhook route behind signature verification
func (h *WebhookHandler) RegisterRoutes(r chi.Router, verify, rateLimit func(http.Handler) http.Handler) {
	if rateLimit == nil {
		rateLimit = passthrough
	}
	r.With(rateLimit, verify).Post("/webhooks/identity", h.Receive)
}

// Receive applies a single identity event
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var envelope IdentityEnvelope
	if err := middleware.DecodeAndValidate(r, &envelope); err != nil {
		h.logger.Debug("Invalid webhook envelope", zap.Error(err))
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, "invalid webhook payload", validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	eventType, ok := domain.ParseIdentityEventType(envelope.Type)
	if !ok {
		h.logger.Debug("Ignoring webhook event", zap.String("type", envelope.Type))
		middleware.RespondWithJSON(w, http.StatusOK, WebhookResponse{Success: true, Message: "ignored"})
		return
	}

	var payload identityPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid event data")
		return
	}
	event := payload.event(eventType)

	deliveryID := r.Header.Get(middleware.WebhookIDHeader)
	if !h.claim(r.Context(), deliveryID) {
		h.logger.Info("Duplicate webhook delivery", zap.String("webhook_id", deliveryID))
		middleware.RespondWithJSON(w, http.StatusOK, WebhookResponse{Success: true, Message: "duplicate"})
		return
	}

	action, err := h.identities.Apply(r.Context(), event)
	if err != nil {
		h.release(deliveryID)
		if errors.Is(err, identity.ErrInvalidEvent) {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to apply identity event",
			zap.String("type", string(event.Type)),
			zap.String("external_id", event.ExternalID),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, WebhookResponse{
		Success: true,
		Message: "processed",
		Action:  string(action),
	})
}

// claim records a delivery id. It reports false only for an id already seen;
// any redis failure lets the delivery through.
func (h *WebhookHandler) claim(ctx context.Context, deliveryID string) bool {
	if h.redis == nil || deliveryID == "" {
		return true
	}
	fresh, err := h.redis.SetNX(ctx, dedupePrefix+deliveryID, 1, h.dedupeTTL).Result()
	if err != nil {
		h.logger.Warn("Webhook dedupe unavailable", zap.Error(err))
		return true
	}
	return fresh
}

func (h *WebhookHandler) release(deliveryID string) {
	if h.redis == nil || deliveryID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.redis.Del(ctx, dedupePrefix+deliveryID).Err(); err != nil {
		h.logger.Warn("Failed to release webhook delivery", zap.String("webhook_id", deliveryID), zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
