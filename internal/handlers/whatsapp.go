package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	twclient "github.com/twilio/twilio-go/client"

	"github.com/mariahq/maria/internal/flow"
	"github.com/mariahq/maria/internal/whatsapp"
)

// eventTimeout bounds the asynchronous handling of one inbound event,
// including its reconcile/relay/send calls.
const eventTimeout = 60 * time.Second

// EventSink consumes normalized inbound chat events.
type EventSink interface {
	HandleEvent(ctx context.Context, ev flow.Event) error
}

// WhatsAppHandler receives Twilio message webhooks, normalizes them into
// flow events, and acknowledges immediately: the event is processed
// asynchronously so a slow CRM call never holds the webhook connection open.
type WhatsAppHandler struct {
	logger *slog.Logger
	sink   EventSink

	validator     *twclient.RequestValidator
	publicBaseURL string
	validate      bool
}

// NewWhatsAppHandler creates the handler. With validate true, requests must
// carry a valid X-Twilio-Signature computed over publicBaseURL plus the
// request URI.
func NewWhatsAppHandler(log *slog.Logger, sink EventSink, authToken, publicBaseURL string, validate bool) *WhatsAppHandler {
	if log == nil {
		log = slog.Default()
	}
	validator := twclient.NewRequestValidator(authToken)
	return &WhatsAppHandler{
		logger:        log.With(slog.String("handler", "whatsapp_webhook")),
		sink:          sink,
		validator:     &validator,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		validate:      validate,
	}
}

func (h *WhatsAppHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/whatsapp", h.Handle)
}

// Handle parses the Twilio form payload. Twilio retries non-2xx deliveries,
// so everything after parsing is acked first and processed after.
func (h *WhatsAppHandler) Handle(c echo.Context) error {
	if err := c.Request().ParseForm(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("parse form: %v", err))
	}
	form := c.Request().PostForm

	if h.validate {
		signature := c.Request().Header.Get("X-Twilio-Signature")
		params := make(map[string]string, len(form))
		for key := range form {
			params[key] = form.Get(key)
		}
		url := h.publicBaseURL + c.Request().RequestURI
		if !h.validator.Validate(url, params, signature) {
			h.logger.Warn("rejected webhook with bad signature")
			return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
		}
	}

	ev, err := eventFromForm(form.Get("From"), form)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		if err := h.sink.HandleEvent(ctx, ev); err != nil {
			h.logger.Error("handle inbound event",
				slog.String("contact", ev.ContactKey), slog.Any("error", err))
		}
	}()

	return c.String(http.StatusOK, "OK")
}

// eventFromForm normalizes Twilio's inbound message fields: Body as the
// text, plus NumMedia attachments as MediaUrl0..N-1 / MediaContentType0..N-1.
func eventFromForm(from string, form map[string][]string) (flow.Event, error) {
	key := whatsapp.ContactKey(from)
	if key == "" {
		return flow.Event{}, fmt.Errorf("missing or invalid From address")
	}

	get := func(name string) string {
		if vals := form[name]; len(vals) > 0 {
			return vals[0]
		}
		return ""
	}

	numMedia, _ := strconv.Atoi(get("NumMedia"))
	attachments := make([]flow.Attachment, 0, numMedia)
	for i := 0; i < numMedia; i++ {
		url := get("MediaUrl" + strconv.Itoa(i))
		if url == "" {
			continue
		}
		attachments = append(attachments, flow.Attachment{
			URL:         url,
			ContentType: get("MediaContentType" + strconv.Itoa(i)),
		})
	}

	return flow.Event{
		ContactKey:  key,
		Text:        strings.TrimSpace(get("Body")),
		Attachments: attachments,
	}, nil
}
