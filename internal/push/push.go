// Package push forwards notifications to users' registered device tokens
// through an Expo-compatible HTTP provider. Delivery is best-effort by
// contract: every failure in here is logged and swallowed, a push problem
// must never fail a message send.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"roadassist/backend/internal/config"
)

// TokenStore reads and prunes the per-user device token sets. Implemented
// by the storage service.
type TokenStore interface {
	GetPushTokens(ctx context.Context, userID string) ([]string, error)
	RemovePushToken(ctx context.Context, userID, token string) error
}

// Bridge batches tokens and talks to the provider.
type Bridge struct {
	Store  TokenStore
	URL    string
	Client *http.Client
}

func NewBridge(store TokenStore, url string) *Bridge {
	return &Bridge{
		Store:  store,
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

type providerRequest struct {
	To    []string          `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type providerTicket struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details"`
}

type providerResponse struct {
	Data []providerTicket `json:"data"`
}

// NotifyUsers sends one notification to every token of every listed user.
// Tokens the provider reports as permanently dead are removed from the
// user's set; nothing is retried.
func (b *Bridge) NotifyUsers(ctx context.Context, userIDs []string, title, body string, data map[string]string) {
	for _, userID := range userIDs {
		tokens, err := b.Store.GetPushTokens(ctx, userID)
		if err != nil {
			log.Printf("WARN: push tokens lookup for %s failed: %v", userID, err)
			continue
		}
		for start := 0; start < len(tokens); start += config.PushBatchSize {
			end := start + config.PushBatchSize
			if end > len(tokens) {
				end = len(tokens)
			}
			b.sendBatch(ctx, userID, tokens[start:end], title, body, data)
		}
	}
}

func (b *Bridge) sendBatch(ctx context.Context, userID string, tokens []string, title, body string, data map[string]string) {
	payload, err := json.Marshal(providerRequest{To: tokens, Title: title, Body: body, Data: data})
	if err != nil {
		log.Printf("WARN: push payload encode failed: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.URL, bytes.NewReader(payload))
	if err != nil {
		log.Printf("WARN: push request build failed: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.Client.Do(req)
	if err != nil {
		log.Printf("WARN: push delivery failed for %s: %v", userID, err)
		return
	}
	defer resp.Body.Close()

	var parsed providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		log.Printf("WARN: push response decode failed: %v", err)
		return
	}

	// Tickets come back in request order, one per token.
	for i, ticket := range parsed.Data {
		if i >= len(tokens) || ticket.Status != "error" {
			continue
		}
		if ticket.Details.Error == "DeviceNotRegistered" {
			if err := b.Store.RemovePushToken(ctx, userID, tokens[i]); err != nil {
				log.Printf("WARN: pruning dead token for %s failed: %v", userID, err)
			}
			continue
		}
		log.Printf("WARN: push ticket error for %s: %s", userID, ticket.Message)
	}
}
