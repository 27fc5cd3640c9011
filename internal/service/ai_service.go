package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"kiwi_quiz_service/internal/config"
)

// Attachment is a binary document passed alongside the prompt, typically a
// PDF for the document-based generation path.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Oracle is the generative model seen as an opaque text-completion function.
// Implementations return free text that should, but is not guaranteed to,
// contain a single JSON object.
type Oracle interface {
	Generate(ctx context.Context, prompt string, attachment *Attachment) (string, error)
}

// AIService talks to the Gemini generateContent REST API.
type AIService struct {
	mu     sync.RWMutex
	config config.AIConfig
	client *http.Client
}

func NewAIService(cfg config.AIConfig) *AIService {
	return &AIService{
		config: cfg,
		client: &http.Client{},
	}
}

// UpdateConfig swaps the model settings at runtime, used by the config
// watcher so key or model changes apply without a restart.
func (s *AIService) UpdateConfig(cfg config.AIConfig) {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
}

type generatePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *inlineDataPart `json:"inline_data,omitempty"`
}

type inlineDataPart struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"` // base64-encoded by encoding/json
}

type generateContentRequest struct {
	Contents []struct {
		Parts []generatePart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature      float64 `json:"temperature"`
		ResponseMIMEType string  `json:"response_mime_type"`
	} `json:"generationConfig"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (s *AIService) Generate(ctx context.Context, prompt string, attachment *Attachment) (string, error) {
	s.mu.RLock()
	cfg := s.config
	s.mu.RUnlock()

	parts := []generatePart{{Text: prompt}}
	if attachment != nil {
		parts = append(parts, generatePart{
			InlineData: &inlineDataPart{
				MIMEType: attachment.MIMEType,
				Data:     attachment.Data,
			},
		})
	}

	var reqBody generateContentRequest
	reqBody.Contents = append(reqBody.Contents, struct {
		Parts []generatePart `json:"parts"`
	}{Parts: parts})
	reqBody.GenerationConfig.Temperature = 0.5
	reqBody.GenerationConfig.ResponseMIMEType = "application/json"

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", cfg.BaseURL, cfg.Model, cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result generateContentResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}
	if result.Error != nil {
		return "", fmt.Errorf("AI API error: %s", result.Error.Message)
	}

	if len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
		var text string
		for _, p := range result.Candidates[0].Content.Parts {
			text += p.Text
		}
		return text, nil
	}

	return "", fmt.Errorf("AI returned no candidates")
}
