package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"agriadvisor/internal/domain"
	"agriadvisor/internal/ports"
)

// chatID accepts both string and numeric identifiers.
type chatID string

func (id *chatID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*id = chatID(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("chat id must be a string or number: %w", err)
	}
	*id = chatID(number.String())
	return nil
}

type summaryPayload struct {
	ID    chatID `json:"id"`
	Title string `json:"title"`
}

type messagePayload struct {
	PromptText   string  `json:"prompt_text"`
	ResponseText *string `json:"response_text"`
}

type chatPayload struct {
	ID       chatID           `json:"id"`
	Title    string           `json:"title"`
	Messages []messagePayload `json:"messages"`
}

func (p chatPayload) session() domain.ChatSession {
	turns := make([]domain.Turn, 0, len(p.Messages))
	for _, m := range p.Messages {
		turn := domain.Turn{Prompt: m.PromptText}
		if m.ResponseText != nil {
			turn.Response = *m.ResponseText
		}
		turns = append(turns, turn)
	}
	return domain.ChatSession{ID: string(p.ID), Title: p.Title, Turns: turns}
}

// ListChats returns the session summaries in server order.
func (c *Client) ListChats(ctx context.Context) ([]domain.SessionSummary, error) {
	req, err := jsonRequest(http.MethodGet, "/api/chats/", nil, true)
	if err != nil {
		return nil, err
	}
	var resp []summaryPayload
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.SessionSummary, 0, len(resp))
	for _, s := range resp {
		out = append(out, domain.SessionSummary{ID: string(s.ID), Title: s.Title})
	}
	return out, nil
}

// GetChat returns one session with its turns.
func (c *Client) GetChat(ctx context.Context, id string) (domain.ChatSession, error) {
	path, err := chatPath(id)
	if err != nil {
		return domain.ChatSession{}, err
	}
	req, err := jsonRequest(http.MethodGet, path, nil, true)
	if err != nil {
		return domain.ChatSession{}, err
	}
	var resp chatPayload
	if err := c.do(ctx, req, &resp); err != nil {
		return domain.ChatSession{}, err
	}
	session := resp.session()
	if session.ID == "" {
		session.ID = id
	}
	return session, nil
}

// DeleteChat removes a session.
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	path, err := chatPath(id)
	if err != nil {
		return err
	}
	req, err := jsonRequest(http.MethodDelete, path, nil, true)
	if err != nil {
		return err
	}
	return c.do(ctx, req, nil)
}

type sendMessageRequest struct {
	Prompt        string  `json:"prompt"`
	ChatID        *string `json:"chat_id"`
	InputType     string  `json:"input_type"`
	InputLanguage string  `json:"input_language"`
}

// SendMessage submits a prompt and returns the server's canonical chat.
func (c *Client) SendMessage(ctx context.Context, msg ports.SendMessageRequest) (domain.ChatSession, error) {
	body := sendMessageRequest{
		Prompt:        msg.Prompt,
		InputType:     string(msg.InputType),
		InputLanguage: msg.Language,
	}
	if body.InputType == "" {
		body.InputType = string(domain.InputTypeText)
	}
	if msg.ChatID != "" {
		id := msg.ChatID
		body.ChatID = &id
	}

	req, err := jsonRequest(http.MethodPost, "/api/messages/", body, true)
	if err != nil {
		return domain.ChatSession{}, err
	}
	var resp chatPayload
	if err := c.do(ctx, req, &resp); err != nil {
		return domain.ChatSession{}, err
	}
	if resp.ID == "" {
		return domain.ChatSession{}, errors.New("backend returned a chat without an id")
	}
	return resp.session(), nil
}

func chatPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("chat id is required")
	}
	return "/api/chats/" + url.PathEscape(id) + "/", nil
}
