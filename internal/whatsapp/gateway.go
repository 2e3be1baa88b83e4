// Package whatsapp is the messaging gateway: outbound sends through the
// Twilio API and authenticated downloads of inbound media.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

const mediaFetchTimeout = 60 * time.Second

// AddressPrefix marks a WhatsApp-routed address in Twilio's scheme.
const AddressPrefix = "whatsapp:"

// ContactKey normalizes a channel address into the session key form:
// "whatsapp:" plus the phone's digits with a leading plus.
func ContactKey(address string) string {
	phone := strings.TrimPrefix(strings.TrimSpace(address), AddressPrefix)
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return ""
	}
	return AddressPrefix + "+" + digits.String()
}

// Gateway sends WhatsApp messages and fetches inbound media from Twilio.
type Gateway struct {
	client     *twilio.RestClient
	httpClient *http.Client
	accountSID string
	authToken  string
	from       string
	logger     *slog.Logger
}

// NewGateway creates a Gateway. from is the sending number in E.164 form.
func NewGateway(log *slog.Logger, accountSID, authToken, from string) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Gateway{
		client:     client,
		httpClient: &http.Client{Timeout: mediaFetchTimeout},
		accountSID: accountSID,
		authToken:  authToken,
		from:       AddressPrefix + strings.TrimPrefix(from, AddressPrefix),
		logger:     log.With(slog.String("service", "whatsapp")),
	}
}

// SendText sends a plain message. to is a contact key ("whatsapp:+...").
func (g *Gateway) SendText(ctx context.Context, to, body string) error {
	params := &openapi.CreateMessageParams{}
	params.SetFrom(g.from)
	params.SetTo(to)
	params.SetBody(body)

	msg, err := g.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	g.logger.Debug("message sent", slog.String("to", to), slog.Any("sid", msg.Sid))
	return nil
}

// SendTemplate sends a pre-approved content template with positional
// substitution variables.
func (g *Gateway) SendTemplate(ctx context.Context, to, templateID string, vars map[string]string) error {
	params := &openapi.CreateMessageParams{}
	params.SetFrom(g.from)
	params.SetTo(to)
	params.SetContentSid(templateID)
	if len(vars) > 0 {
		encoded, err := json.Marshal(vars)
		if err != nil {
			return fmt.Errorf("encode template variables: %w", err)
		}
		params.SetContentVariables(string(encoded))
	}

	msg, err := g.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send template: %w", err)
	}
	g.logger.Debug("template sent", slog.String("to", to), slog.Any("sid", msg.Sid))
	return nil
}

// FetchMedia downloads an inbound attachment. Twilio media URLs require the
// account credentials as basic auth.
func (g *Gateway) FetchMedia(ctx context.Context, url string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build media request: %w", err)
	}
	req.SetBasicAuth(g.accountSID, g.authToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch media: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, "", fmt.Errorf("fetch media: status %d", resp.StatusCode)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}
