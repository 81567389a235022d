// Package whatsapp is a thin client for an Infobip-style WhatsApp Business API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ds124wfegd/task-reminder/internal/entity"
)

const (
	templatePath = "/message/template"
	textPath     = "/message/text"
)

type Config struct {
	BaseURL string
	APIKey  string
	Sender  string
	// Header is the text placeholder of the template header, empty - no header
	Header  string
	Timeout time.Duration // 0 - no client timeout, transport defaults apply
}

type Client struct {
	baseURL    string
	apiKey     string
	sender     string
	header     string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		sender:     cfg.Sender,
		header:     cfg.Header,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type templateMessage struct {
	Messages []templateEnvelope `json:"messages"`
}

type templateEnvelope struct {
	From    string          `json:"from,omitempty"`
	To      string          `json:"to"`
	Content templateContent `json:"content"`
}

type templateContent struct {
	TemplateName string       `json:"templateName"`
	Language     string       `json:"language"`
	TemplateData templateData `json:"templateData"`
}

type templateData struct {
	Header *templateHeader `json:"header,omitempty"`
	Body   templateBody    `json:"body"`
}

type templateHeader struct {
	Type        string `json:"type"`
	Placeholder string `json:"placeholder"`
}

type templateBody struct {
	Placeholders []string `json:"placeholders"`
}

type textMessage struct {
	From    string      `json:"from,omitempty"`
	To      string      `json:"to"`
	Content textContent `json:"content"`
}

type textContent struct {
	Text string `json:"text"`
}

// gatewayResponse covers both the bulk template reply and the single text reply.
type gatewayResponse struct {
	Messages  []messageStatus `json:"messages"`
	MessageID string          `json:"messageId"`
}

type messageStatus struct {
	MessageID string `json:"messageId"`
}

// SendTemplate sends a pre-approved template with ordered body placeholders.
// to is passed through unchanged, the normalizer already produced the gateway format.
func (c *Client) SendTemplate(ctx context.Context, to, templateName, language string, placeholders []string) entity.DeliveryResult {
	data := templateData{
		Body: templateBody{Placeholders: placeholders},
	}
	if c.header != "" {
		data.Header = &templateHeader{Type: "TEXT", Placeholder: c.header}
	}

	body := templateMessage{
		Messages: []templateEnvelope{{
			From: c.sender,
			To:   to,
			Content: templateContent{
				TemplateName: templateName,
				Language:     language,
				TemplateData: data,
			},
		}},
	}
	return c.post(ctx, templatePath, body)
}

// SendText sends a free-form message. Used for overdue and manual sends.
func (c *Client) SendText(ctx context.Context, to, text string) entity.DeliveryResult {
	body := textMessage{
		From:    c.sender,
		To:      to,
		Content: textContent{Text: text},
	}
	return c.post(ctx, textPath, body)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) entity.DeliveryResult {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return entity.DeliveryResult{Error: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return entity.DeliveryResult{Error: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return entity.DeliveryResult{Error: fmt.Sprintf("failed to execute request: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return entity.DeliveryResult{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("failed to read response body: %v", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return entity.DeliveryResult{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("gateway returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
		}
	}

	result := entity.DeliveryResult{Success: true, StatusCode: resp.StatusCode}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return result
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return entity.DeliveryResult{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("malformed gateway response: %v", err),
		}
	}

	result.MessageID = parsed.MessageID
	if result.MessageID == "" && len(parsed.Messages) > 0 {
		result.MessageID = parsed.Messages[0].MessageID
	}
	return result
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
