package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultGraphAPIBaseURL is the Meta Graph API endpoint used for sending
// messages.
const DefaultGraphAPIBaseURL = "https://graph.facebook.com/v21.0"

// DefaultReengagementTemplate is the approved template sent when the
// customer service window is closed.
const DefaultReengagementTemplate = "reengagement_ping"

// CloudAPIOpts holds configuration options for the Cloud API service.
type CloudAPIOpts struct {
	BaseURL       string
	AccessToken   string
	PhoneNumberID string
	Template      string
	HTTPClient    *http.Client
}

// CloudAPIOption defines a configuration option for the Cloud API service.
type CloudAPIOption func(*CloudAPIOpts)

// WithCloudBaseURL overrides the Graph API base URL. Tests point this at a
// local server.
func WithCloudBaseURL(url string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.BaseURL = url }
}

// WithCloudCredentials sets the access token and sending phone number ID.
func WithCloudCredentials(accessToken, phoneNumberID string) CloudAPIOption {
	return func(o *CloudAPIOpts) {
		o.AccessToken = accessToken
		o.PhoneNumberID = phoneNumberID
	}
}

// WithReengagementTemplate overrides the template used outside the customer
// service window.
func WithReengagementTemplate(name string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.Template = name }
}

// WithCloudHTTPClient overrides the HTTP client.
func WithCloudHTTPClient(c *http.Client) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.HTTPClient = c }
}

// CloudAPIService sends WhatsApp messages through the Meta Cloud API.
//
// Free-form text is only deliverable while the 24-hour customer service
// window is open; outside it the service falls back to an approved template.
type CloudAPIService struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	template      string
	httpClient    *http.Client
	window        *WindowTracker
}

// NewCloudAPIService creates a Cloud API messaging service.
func NewCloudAPIService(opts ...CloudAPIOption) (*CloudAPIService, error) {
	cfg := CloudAPIOpts{
		BaseURL:  DefaultGraphAPIBaseURL,
		Template: DefaultReengagementTemplate,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccessToken == "" || cfg.PhoneNumberID == "" {
		return nil, fmt.Errorf("cloud API access token and phone number ID are required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	slog.Debug("CloudAPIService created", "phoneNumberID", cfg.PhoneNumberID)
	return &CloudAPIService{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		template:      cfg.Template,
		httpClient:    cfg.HTTPClient,
		window:        NewWindowTracker(),
	}, nil
}

// RecordInbound opens the customer service window for a sender. The webhook
// handler calls this for every inbound message.
func (s *CloudAPIService) RecordInbound(recipient string, at time.Time) {
	canonical, err := CanonicalizePhoneNumber(recipient)
	if err != nil {
		return
	}
	s.window.RecordInbound(canonical, at)
}

// ValidateAndCanonicalizeRecipient canonicalizes the recipient as E.164.
func (s *CloudAPIService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhoneNumber(recipient)
}

type cloudTextPayload struct {
	MessagingProduct string         `json:"messaging_product"`
	To               string         `json:"to"`
	Type             string         `json:"type"`
	Text             *cloudTextBody `json:"text,omitempty"`
}

type cloudTextBody struct {
	Body string `json:"body"`
}

type cloudTemplatePayload struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Template         cloudTemplate `json:"template"`
}

type cloudTemplate struct {
	Name     string        `json:"name"`
	Language cloudLanguage `json:"language"`
}

type cloudLanguage struct {
	Code string `json:"code"`
}

type cloudSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendMessage sends a text message through the Cloud API and returns the
// provider message ID. Outside the customer service window the approved
// re-engagement template is sent instead of the text body.
func (s *CloudAPIService) SendMessage(ctx context.Context, to string, body string) (string, error) {
	canonical, err := CanonicalizePhoneNumber(to)
	if err != nil {
		slog.Error("CloudAPIService invalid recipient", "error", err, "to", to)
		return "", err
	}

	var payload any
	if s.window.IsOpen(canonical) {
		payload = cloudTextPayload{
			MessagingProduct: "whatsapp",
			To:               strings.TrimPrefix(canonical, "+"),
			Type:             "text",
			Text:             &cloudTextBody{Body: body},
		}
	} else {
		slog.Info("CloudAPIService window closed, sending template", "to", canonical, "template", s.template)
		payload = cloudTemplatePayload{
			MessagingProduct: "whatsapp",
			To:               strings.TrimPrefix(canonical, "+"),
			Type:             "template",
			Template: cloudTemplate{
				Name:     s.template,
				Language: cloudLanguage{Code: "pt_BR"},
			},
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode message payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("CloudAPIService request failed", "error", err, "to", canonical)
		return "", fmt.Errorf("cloud API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read cloud API response: %w", err)
	}

	var decoded cloudSendResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode cloud API response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := "unknown error"
		if decoded.Error != nil {
			msg = decoded.Error.Message
		}
		slog.Error("CloudAPIService send rejected", "status", resp.StatusCode, "to", canonical, "apiError", msg)
		return "", fmt.Errorf("cloud API send failed with status %d: %s", resp.StatusCode, msg)
	}
	if len(decoded.Messages) == 0 {
		return "", fmt.Errorf("cloud API response contained no message ID")
	}

	slog.Debug("CloudAPIService message sent", "to", canonical, "messageID", decoded.Messages[0].ID)
	return decoded.Messages[0].ID, nil
}
