package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
)

// anonymousUser keys the conversation of a signed-out user
const anonymousUser = "local"

// contentGenerator is the part of genai.Models the backend uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiBackend answers chat messages with Gemini and keeps each user's
// conversation in memory
type GeminiBackend struct {
	models          contentGenerator
	logger          *zap.Logger
	model           string
	temperature     float32
	topP            float32
	topK            float32
	maxOutputTokens int
	timeout         time.Duration
	maxAttempts     int
	backoff         time.Duration
	now             func() time.Time

	mu           sync.Mutex
	conversation map[string][]*genai.Content
	exchanges    map[string][]entities.Exchange
}

var _ repositories.ChatBackend = (*GeminiBackend)(nil)

func newGeminiBackend(models contentGenerator, config GeminiConfig, logger *zap.Logger) *GeminiBackend {
	b := &GeminiBackend{
		models:          models,
		logger:          logger,
		model:           config.Model,
		temperature:     config.Temperature,
		topP:            config.TopP,
		topK:            config.TopK,
		maxOutputTokens: config.MaxOutputTokens,
		timeout:         time.Duration(config.TimeoutSeconds) * time.Second,
		maxAttempts:     defaultMaxAttempts,
		backoff:         time.Second,
		now:             time.Now,
		conversation:    make(map[string][]*genai.Content),
		exchanges:       make(map[string][]entities.Exchange),
	}

	if b.model == "" {
		b.model = defaultModel
	}
	if b.temperature == 0 {
		b.temperature = defaultTemperature
	}
	if b.topP == 0 {
		b.topP = defaultTopP
	}
	if b.topK == 0 {
		b.topK = defaultTopK
	}
	if b.maxOutputTokens == 0 {
		b.maxOutputTokens = defaultMaxTokens
	}
	if b.timeout == 0 {
		b.timeout = defaultTimeoutSeconds * time.Second
	}

	logger.Info("Gemini chat backend configured",
		zap.String("model", b.model),
		zap.Float32("temperature", b.temperature),
		zap.Int("maxOutputTokens", b.maxOutputTokens))
	return b
}

// SendMessage implements repositories.ChatBackend
func (b *GeminiBackend) SendMessage(ctx context.Context, creds entities.Credentials, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", errors.New("content cannot be empty")
	}
	userID := conversationKey(creds.UserID())

	b.mu.Lock()
	history := append([]*genai.Content(nil), b.conversation[userID]...)
	b.mu.Unlock()

	userContent := genai.NewContentFromText(content, genai.RoleUser)
	contents := append(history, userContent)

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(GeminiHardcodedConfig.SystemPrompt, genai.RoleUser),
		SafetySettings:    GeminiHardcodedConfig.SafetySettings,
		Temperature:       genai.Ptr(b.temperature),
		TopP:              genai.Ptr(b.topP),
		TopK:              genai.Ptr(b.topK),
		MaxOutputTokens:   int32(b.maxOutputTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	response, err := b.generate(ctx, contents, config)
	if err != nil {
		b.logger.Error("Failed to send message to Gemini", zap.Error(err))
		return "", err
	}

	reply := responseText(response)
	if reply == "" {
		b.logger.Warn("Empty response from Gemini")
		return "", errors.New("gemini returned no content")
	}

	b.mu.Lock()
	b.conversation[userID] = append(b.conversation[userID], userContent, genai.NewContentFromText(reply, genai.RoleModel))
	b.exchanges[userID] = append(b.exchanges[userID], entities.Exchange{
		Message:   content,
		Response:  reply,
		Timestamp: b.now(),
	})
	turns := len(b.exchanges[userID])
	b.mu.Unlock()

	b.logger.Info("Chat message processed",
		zap.String("userID", userID),
		zap.String("responsePreview", reply[:min(50, len(reply))]),
		zap.Int("turns", turns))
	return reply, nil
}

func (b *GeminiBackend) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var err error
	for attempt := 0; attempt < b.maxAttempts; attempt++ {
		var response *genai.GenerateContentResponse
		response, err = b.models.GenerateContent(ctx, b.model, contents, config)
		if err == nil {
			return response, nil
		}

		b.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < b.maxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * b.backoff):
			}
		}
	}
	return nil, err
}

// History implements repositories.ChatBackend with the exchanges of this process
func (b *GeminiBackend) History(ctx context.Context, creds entities.Credentials, userID string) ([]entities.Exchange, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]entities.Exchange(nil), b.exchanges[conversationKey(userID)]...), nil
}

func conversationKey(userID string) string {
	if userID == "" {
		return anonymousUser
	}
	return userID
}

func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(text.String())
}
