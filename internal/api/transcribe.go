package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"agriadvisor/internal/ports"
)

type transcribeResponse struct {
	Text            string `json:"text"`
	TranscribedText string `json:"transcribedText"`
}

// Transcribe uploads a recording and returns the recognized text. The token
// is attached when one is available; a 401 signs the user out like any other
// session-scoped call.
func (c *Client) Transcribe(ctx context.Context, payload ports.AudioPayload, locale string) (string, error) {
	if len(payload.Data) == 0 {
		return "", errors.New("empty audio payload")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	filename := payload.Filename
	if filename == "" {
		filename = "recording.wav"
	}
	contentType := payload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(payload.Data); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}
	if err := writer.WriteField("language", locale); err != nil {
		return "", fmt.Errorf("write language field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req := request{
		method:      http.MethodPost,
		path:        "/api/transcribe/",
		body:        &body,
		contentType: writer.FormDataContentType(),
		bearer:      c.tokens != nil && c.tokens.AccessToken() != "",
	}
	var resp transcribeResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		text = strings.TrimSpace(resp.TranscribedText)
	}
	return text, nil
}
