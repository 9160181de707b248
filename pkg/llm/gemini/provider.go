package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coeus-ai-be/pkg/llm"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type GeminiProvider struct {
	APIKey    string
	ModelName string
	BaseURL   string
	Client    *http.Client
}

// Ensure GeminiProvider implements StreamingProvider
var _ llm.StreamingProvider = &GeminiProvider{}

func NewGeminiProvider(apiKey, modelName string) *GeminiProvider {
	return &GeminiProvider{
		APIKey:    apiKey,
		ModelName: modelName,
		BaseURL:   defaultBaseURL,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content *geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

// --- Interface Implementation ---

func (g *GeminiProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := &llm.Options{}
	for _, opt := range opts {
		opt(options)
	}

	contents := make([]geminiContent, 0, len(history))
	for _, msg := range history {
		role := msg.Role
		// Gemini uses "model" where everyone else says "assistant"
		if role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Parts: []geminiPart{{Text: msg.Content}},
			Role:  role,
		})
	}

	body, err := g.post(ctx, g.endpoint("generateContent", options, false), geminiRequest{Contents: contents})
	if err != nil {
		return "", err
	}

	var geminiRes geminiResponse
	if err := json.Unmarshal(body, &geminiRes); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return firstText(&geminiRes)
}

func (g *GeminiProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return g.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// GenerateStream opens a streamGenerateContent call (SSE mode) and yields
// candidate text fragments as they arrive.
func (g *GeminiProvider) GenerateStream(ctx context.Context, prompt string, attachments []llm.Attachment, opts ...llm.Option) (llm.Stream, error) {
	options := &llm.Options{}
	for _, opt := range opts {
		opt(options)
	}

	parts := []geminiPart{{Text: prompt}}
	for _, att := range attachments {
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MimeType: att.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(att.Data),
			},
		})
	}

	reqPayload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
	}
	payloadJson, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := g.endpoint("streamGenerateContent", options, true)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadJson))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", g.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		resBody, _ := io.ReadAll(res.Body)
		res.Body.Close()
		return nil, fmt.Errorf(
			"status error, got status %d. with response body %s",
			res.StatusCode,
			string(resBody),
		)
	}

	return &geminiStream{
		body:   res.Body,
		reader: bufio.NewReader(res.Body),
	}, nil
}

func (g *GeminiProvider) endpoint(method string, options *llm.Options, sse bool) string {
	model := g.ModelName
	if options.Model != "" {
		model = options.Model
	}
	url := fmt.Sprintf("%s/models/%s:%s", g.BaseURL, model, method)
	if sse {
		url += "?alt=sse"
	}
	return url
}

func (g *GeminiProvider) post(ctx context.Context, url string, payload geminiRequest) ([]byte, error) {
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadJson))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", g.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"status error, got status %d. with response body %s",
			res.StatusCode,
			string(resBody),
		)
	}
	return resBody, nil
}

func firstText(res *geminiResponse) (string, error) {
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty candidates in response")
	}
	return res.Candidates[0].Content.Parts[0].Text, nil
}

// geminiStream consumes the SSE body of streamGenerateContent.
// Each event line is "data: {json}", one generation delta per event.
type geminiStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	text   string
	err    error
	done   bool
}

func (s *geminiStream) Next() bool {
	if s.done {
		return false
	}
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				s.err = err
			}
			s.done = true
			return false
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue // comments, blank keep-alive lines
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var res geminiResponse
		if err := json.Unmarshal([]byte(payload), &res); err != nil {
			continue // skip undecodable event, keep the stream alive
		}
		text, err := firstText(&res)
		if err != nil || text == "" {
			continue
		}
		s.text = text
		return true
	}
}

func (s *geminiStream) Text() string { return s.text }
func (s *geminiStream) Err() error   { return s.err }

func (s *geminiStream) Close() error {
	s.done = true
	return s.body.Close()
}
