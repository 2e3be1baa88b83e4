package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/mariahq/maria/internal/reconcile"
	"github.com/mariahq/maria/internal/whatsapp"
)

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

// ConversationStarter opens the intake flow toward a contact.
type ConversationStarter interface {
	StartConversation(ctx context.Context, contactKey, displayName string) error
}

// RecordGetter resolves a CRM record by id.
type RecordGetter interface {
	GetRecord(ctx context.Context, recordID string) (reconcile.Record, error)
}

// MondayHandler receives Monday.com webhook callbacks. Two payload kinds
// arrive here: the connection challenge, echoed back verbatim, and item
// events, which trigger the outbound welcome toward the record's phone. The
// event does not feed the state machine; it only opens the conversation.
type MondayHandler struct {
	logger        *slog.Logger
	starter       ConversationStarter
	records       RecordGetter
	signingSecret string
}

// NewMondayHandler creates the handler. With a non-empty signingSecret the
// webhook's Authorization JWT is verified against it.
func NewMondayHandler(log *slog.Logger, starter ConversationStarter, records RecordGetter, signingSecret string) *MondayHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MondayHandler{
		logger:        log.With(slog.String("handler", "monday_webhook")),
		starter:       starter,
		records:       records,
		signingSecret: signingSecret,
	}
}

func (h *MondayHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/monday", h.Handle)
}

type mondayWebhook struct {
	Challenge json.RawMessage `json:"challenge"`
	Event     struct {
		PulseID json.Number `json:"pulseId"`
	} `json:"event"`
}

func (h *MondayHandler) Handle(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(payload)) > webhookMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", webhookMaxBodyBytes))
	}

	var body mondayWebhook
	if err := json.Unmarshal(payload, &body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("decode body: %v", err))
	}

	// Connection handshake comes before auth: Monday sends it when the
	// webhook is registered and expects the challenge echoed back.
	if len(body.Challenge) > 0 {
		h.logger.Info("answering webhook challenge")
		return c.JSON(http.StatusOK, map[string]json.RawMessage{"challenge": body.Challenge})
	}

	if h.signingSecret != "" {
		if err := h.verifyToken(c.Request().Header.Get("Authorization")); err != nil {
			h.logger.Warn("rejected webhook", slog.Any("error", err))
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook token")
		}
	}

	recordID := body.Event.PulseID.String()
	if recordID == "" || recordID == "0" {
		return c.String(http.StatusOK, "OK")
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		h.openConversation(ctx, recordID)
	}()

	return c.String(http.StatusOK, "OK")
}

func (h *MondayHandler) verifyToken(header string) error {
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return fmt.Errorf("missing authorization token")
	}
	_, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.signingSecret), nil
	})
	if err != nil {
		return fmt.Errorf("verify token: %w", err)
	}
	return nil
}

// openConversation resolves the record's phone and starts the flow toward
// it. A record without a phone cannot be contacted; that is logged, not an
// error to Monday.
func (h *MondayHandler) openConversation(ctx context.Context, recordID string) {
	rec, err := h.records.GetRecord(ctx, recordID)
	if err != nil {
		h.logger.Error("resolve record", slog.String("record_id", recordID), slog.Any("error", err))
		return
	}
	contactKey := whatsapp.ContactKey(rec.Phone)
	if contactKey == "" {
		h.logger.Warn("record has no usable phone, cannot start conversation",
			slog.String("record_id", recordID))
		return
	}
	if err := h.starter.StartConversation(ctx, contactKey, rec.Name); err != nil {
		h.logger.Error("start conversation",
			slog.String("record_id", recordID), slog.Any("error", err))
	}
}
