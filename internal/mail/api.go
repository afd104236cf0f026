package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// APISender posts mail as JSON to an HTTP mail API with a bearer key.
type APISender struct {
	url    string
	from   string
	client *resty.Client
}

// NewAPISender returns a sender for the mail API at url.
func NewAPISender(url, apiKey, from string) *APISender {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &APISender{url: url, from: from, client: client}
}

type apiPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	Tag     string   `json:"tag"`
}

func (s *APISender) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(apiPayload{From: s.from, To: msg.To, Subject: msg.Subject, Text: msg.Body, Tag: string(msg.Kind)}).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("mail api: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mail api: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
