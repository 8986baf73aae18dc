package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const systemPrompt = "Ты аналитик по подбору тарифов для бизнеса."

const userPromptTemplate = `На основе ответов пользователя на вопросы онбординга подбери три тарифа
(Базовый, Стандарт, Премиум или свои варианты), порекомендуй один из них
и объясни выбор.

Ответы пользователя:
%s`

// Client ходит в OpenAI-совместимый chat-completions API и принуждает
// модель вернуть структурированное предложение через tool call.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	log     *slog.Logger
}

func New(baseURL, apiKey, model string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []tool        `json:"tools"`
	ToolChoice any           `json:"tool_choice"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Схема аргументов recommend_tariff: три тарифа, рекомендация, объяснение.
var recommendSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"tariffs": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"name": {"type": "string"},
					"description": {"type": "string"},
					"price": {"type": "number"},
					"features": {"type": "array", "items": {"type": "string"}}
				},
				"required": ["name", "description", "price", "features"]
			}
		},
		"recommendation": {"type": "string"},
		"explanation": {"type": "string"}
	},
	"required": ["tariffs", "recommendation", "explanation"]
}`)

// Recommend анализирует ответы онбординга и возвращает предложение тарифов.
func (c *Client) Recommend(ctx context.Context, answers []AnswerPair) (*Proposal, error) {
	var sb strings.Builder
	for _, a := range answers {
		fmt.Fprintf(&sb, "Вопрос: %s\nОтвет: %s\n", a.Question, a.Answer)
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userPromptTemplate, sb.String())},
		},
		Tools: []tool{{
			Type: "function",
			Function: toolFunction{
				Name:        "recommend_tariff",
				Description: "Рекомендует тарифы на основе ответов пользователя",
				Parameters:  recommendSchema,
			},
		}},
		ToolChoice: map[string]any{
			"type":     "function",
			"function": map[string]any{"name": "recommend_tariff"},
		},
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call llm: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm returned status %s: %s", resp.Status, truncate(body, 256))
	}

	p, err := parseProposal(body)
	if err != nil {
		return nil, err
	}
	c.log.Info("тарифы подобраны", "count", len(p.Tariffs), "recommendation", p.Recommendation)
	return p, nil
}

func parseProposal(body []byte) (*Proposal, error) {
	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 || len(cr.Choices[0].Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("response has no tool call")
	}

	args := cr.Choices[0].Message.ToolCalls[0].Function.Arguments
	var p Proposal
	if err := json.Unmarshal([]byte(args), &p); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}
	if len(p.Tariffs) == 0 {
		return nil, fmt.Errorf("proposal has no tariffs")
	}
	if p.Recommendation == "" {
		return nil, fmt.Errorf("proposal has no recommendation")
	}
	return &p, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
