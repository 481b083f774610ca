package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"sms-billing-gateway/config"
	"sms-billing-gateway/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const messagingPath = "/version1/messaging"

// AfricasTalkingGateway implements ports.SMSGateway against the
// Africa's Talking bulk messaging API. It performs exactly one HTTP
// attempt per Send call; retry policy belongs to the caller, which must
// refund the charge when the whole batch fails.
type AfricasTalkingGateway struct {
	baseURL       string
	username      string
	apiKey        string
	defaultSender string
	client        *http.Client
	log           zerolog.Logger
}

// NewAfricasTalkingGateway creates a gateway client from config.
func NewAfricasTalkingGateway(cfg config.GatewayConfig, log zerolog.Logger) *AfricasTalkingGateway {
	return &AfricasTalkingGateway{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		username:      cfg.Username,
		apiKey:        cfg.APIKey,
		defaultSender: cfg.SenderID,
		client:        &http.Client{Timeout: cfg.Timeout},
		log:           log,
	}
}

// messagingResponse mirrors the provider's response envelope.
type messagingResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			Number     string `json:"number"`
			Status     string `json:"status"`
			StatusCode int    `json:"statusCode"`
			Cost       string `json:"cost"`
			MessageID  string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

// Send submits one batch. Any transport or protocol failure is returned
// as an error; per-recipient rejections come back inside the result.
func (g *AfricasTalkingGateway) Send(ctx context.Context, message string, recipients []string, senderID string) (*ports.GatewaySendResult, error) {
	form := url.Values{}
	form.Set("username", g.username)
	form.Set("to", strings.Join(recipients, ","))
	form.Set("message", message)
	if senderID == "" {
		senderID = g.defaultSender
	}
	if senderID != "" {
		form.Set("from", senderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+messagingPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.log.Error().
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("gateway rejected batch")
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var parsed messagingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}

	// A 2xx body with no recipient verdicts (error envelopes unmarshal
	// cleanly into the zero struct) means nothing was attempted. That is
	// a total failure, not an empty success: the charge must be reversed.
	if len(parsed.SMSMessageData.Recipients) == 0 {
		g.log.Error().
			Str("summary", parsed.SMSMessageData.Message).
			Str("body", string(body)).
			Msg("gateway response carried no recipient outcomes")
		return nil, fmt.Errorf("gateway returned no recipient outcomes: %q", parsed.SMSMessageData.Message)
	}

	result := &ports.GatewaySendResult{Summary: parsed.SMSMessageData.Message}
	for _, r := range parsed.SMSMessageData.Recipients {
		result.Recipients = append(result.Recipients, ports.GatewayRecipient{
			Number:        r.Number,
			Accepted:      r.Status == "Success",
			Status:        r.Status,
			StatusCode:    r.StatusCode,
			Cost:          parseCost(r.Cost),
			CorrelationID: r.MessageID,
		})
	}

	return result, nil
}

// parseCost extracts the numeric amount from the provider's
// "<CURRENCY> <amount>" cost strings, e.g. "UGX 32.00".
func parseCost(cost string) decimal.Decimal {
	parts := strings.Fields(cost)
	raw := cost
	if len(parts) == 2 {
		raw = parts[1]
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}
