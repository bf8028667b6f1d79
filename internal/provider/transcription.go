package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
)

const (
	DefaultTranscriptionBaseURL = "https://api.openai.com/v1"
	DefaultTranscriptionModel   = "whisper-1"
)

// Transcriber converts recorded audio to text.
type Transcriber struct {
	baseClient
	model string
}

// NewTranscriber creates a Whisper-style transcription client.
func NewTranscriber(opts Options, model string) *Transcriber {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultTranscriptionBaseURL
	}
	if model == "" {
		model = DefaultTranscriptionModel
	}
	return &Transcriber{baseClient: newBaseClient("transcription", opts), model: model}
}

type transcriptionResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe uploads audio and returns the recognized text.
func (t *Transcriber) Transcribe(ctx context.Context, apiKey string, audio []byte) (string, error) {
	if apiKey == "" {
		return "", ErrMissingCredential
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "audio.webm")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := w.WriteField("model", t.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+apiKey)

	body, err := t.do(ctx, req)
	if err != nil {
		return "", err
	}

	var out transcriptionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &ParseError{Msg: "decode transcription response", Err: err}
	}
	if out.Text == "" {
		if out.Error != nil && out.Error.Message != "" {
			return "", &ParseError{Msg: out.Error.Message}
		}
		return "", &ParseError{Msg: "transcription returned no text"}
	}
	return out.Text, nil
}

// ErrEmptyAudio is returned when an audio payload decodes to nothing.
var ErrEmptyAudio = errors.New("audio payload is empty")

// DecodeAudio accepts either a base64 data URL or bare base64 and returns
// the raw audio bytes.
func DecodeAudio(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return nil, fmt.Errorf("malformed data url")
		}
		if !strings.HasSuffix(payload[:comma], ";base64") {
			return nil, fmt.Errorf("data url is not base64 encoded")
		}
		payload = payload[comma+1:]
	}

	audio, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		audio, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode audio: %w", err)
		}
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}
