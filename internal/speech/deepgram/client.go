package deepgram

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

const providerName = "deepgram"

// Client transcribes prerecorded audio by URL.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

func NewClient(cfg config.DeepgramConfig, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.deepgram.com"
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      cfg.Model,
		language:   cfg.Language,
		httpClient: httpClient,
	}, nil
}

func (c *Client) Name() string { return providerName }

type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []struct {
					Word           string  `json:"word"`
					PunctuatedWord string  `json:"punctuated_word"`
					Start          float64 `json:"start"`
					End            float64 `json:"end"`
					Confidence     float64 `json:"confidence"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (c *Client) Transcribe(ctx context.Context, audioURL string) (*speech.Transcript, error) {
	query := url.Values{}
	query.Set("smart_format", "true")
	query.Set("punctuate", "true")
	if c.model != "" {
		query.Set("model", c.model)
	}
	if c.language != "" {
		query.Set("language", c.language)
	}

	body, _ := json.Marshal(map[string]string{"url": audioURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/listen?"+query.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, &speech.Error{Provider: providerName, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &speech.Error{Provider: providerName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &speech.Error{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(snippet)),
		}
	}

	var payload listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &speech.Error{Provider: providerName, Message: "malformed response", Err: err}
	}
	if len(payload.Results.Channels) == 0 || len(payload.Results.Channels[0].Alternatives) == 0 {
		return nil, &speech.Error{Provider: providerName, Message: "response has no transcript alternatives"}
	}

	best := payload.Results.Channels[0].Alternatives[0]
	words := make([]speech.Word, 0, len(best.Words))
	for _, w := range best.Words {
		text := w.PunctuatedWord
		if text == "" {
			text = w.Word
		}
		words = append(words, speech.Word{Text: text, Start: w.Start, End: w.End, Confidence: w.Confidence})
	}

	return &speech.Transcript{
		Text:       strings.TrimSpace(best.Transcript),
		Confidence: best.Confidence,
		Words:      words,
	}, nil
}
