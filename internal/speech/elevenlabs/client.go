package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hirevoice/interview/internal/config"
	"hirevoice/interview/internal/speech"
)

const providerName = "elevenlabs"

// Client renders question text to mp3 audio.
type Client struct {
	apiKey       string
	baseURL      string
	defaultVoice string
	model        string
	httpClient   *http.Client
}

func NewClient(cfg config.ElevenLabsConfig, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("ELEVENLABS_API_KEY is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Minute}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		defaultVoice: cfg.DefaultVoice,
		model:        cfg.Model,
		httpClient:   httpClient,
	}, nil
}

func (c *Client) Name() string { return providerName }

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

func (c *Client) Synthesize(ctx context.Context, text string, voice speech.Voice) (*speech.Audio, error) {
	voiceID := voice.ID
	if voiceID == "" {
		voiceID = c.defaultVoice
	}
	model := voice.Model
	if model == "" {
		model = c.model
	}
	settings := voiceSettings{Stability: voice.Stability, SimilarityBoost: voice.Similarity}
	if settings.Stability == 0 && settings.SimilarityBoost == 0 {
		settings = voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	}

	body, _ := json.Marshal(synthesizeRequest{Text: text, ModelID: model, VoiceSettings: settings})
	endpoint := c.baseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &speech.Error{Provider: providerName, Message: "failed to build request", Err: err}
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &speech.Error{Provider: providerName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &speech.Error{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(snippet)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &speech.Error{Provider: providerName, Message: "failed to read audio", Err: err}
	}
	if len(data) == 0 {
		return nil, &speech.Error{Provider: providerName, Message: "empty audio"}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &speech.Audio{Data: data, ContentType: contentType}, nil
}
