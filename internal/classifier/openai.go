package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatdesk-platform/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `Você é um roteador de atendimento. Dada a mensagem de um cliente e a lista de setores disponíveis, responda APENAS com o nome exato de um setor da lista. Se nenhum setor se aplicar com clareza, responda exatamente: ` + NotIdentified

// OpenAI classifies client messages into sectors using a chat model.
// It is best-effort: timeouts and API errors degrade to NotIdentified.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     *slog.Logger
}

func NewOpenAI(cfg config.ClassifierConfig, log *slog.Logger) *OpenAI {
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{
		client:  openai.NewClient(cfg.APIKey),
		model:   model,
		timeout: cfg.Timeout,
		log:     log,
	}
}

func (c *OpenAI) Identify(ctx context.Context, text string, candidates []string) string {
	if len(candidates) == 0 || strings.TrimSpace(text) == "" {
		return NotIdentified
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	user := fmt.Sprintf("Setores disponíveis: %s\n\nMensagem do cliente: %s", strings.Join(candidates, ", "), text)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		// Upstream failure is non-fatal by contract; routing falls back.
		c.log.Warn("classifier call failed", "err", err)
		return NotIdentified
	}
	if len(resp.Choices) == 0 {
		return NotIdentified
	}
	return matchCandidate(resp.Choices[0].Message.Content, candidates)
}
