package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

const validArguments = `{
	"tariffs": [
		{"name": "Базовый", "description": "Для небольших компаний", "price": 1990, "features": ["Основной функционал"]},
		{"name": "Стандарт", "description": "Для среднего бизнеса", "price": 4990, "features": ["Расширенный функционал", "Поддержка"]},
		{"name": "Премиум", "description": "Для крупного бизнеса", "price": 9990, "features": ["Всё включено"]}
	],
	"recommendation": "Стандарт",
	"explanation": "Подходит по объёму и бюджету."
}`

func toolCallResponse(arguments string) string {
	msg := map[string]any{
		"choices": []map[string]any{{
			"message": map[string]any{
				"tool_calls": []map[string]any{{
					"function": map[string]any{
						"name":      "recommend_tariff",
						"arguments": arguments,
					},
				}},
			},
		}},
	}
	raw, _ := json.Marshal(msg)
	return string(raw)
}

func TestParseProposal(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid tool call", body: toolCallResponse(validArguments)},
		{name: "no choices", body: `{"choices": []}`, wantErr: true},
		{name: "no tool calls", body: `{"choices": [{"message": {}}]}`, wantErr: true},
		{name: "arguments not json", body: toolCallResponse(`не json`), wantErr: true},
		{name: "empty tariffs", body: toolCallResponse(`{"tariffs": [], "recommendation": "x", "explanation": "y"}`), wantErr: true},
		{name: "missing recommendation", body: toolCallResponse(`{"tariffs": [{"name": "А", "description": "", "price": 1, "features": []}], "explanation": "y"}`), wantErr: true},
		{name: "garbage body", body: `<html>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parseProposal([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, p.Tariffs, 3)
			assert.Equal(t, "Стандарт", p.Recommendation)
			assert.Equal(t, 4990.0, p.Tariffs[1].Price)
		})
	}
}

func TestClient_Recommend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "Какая у вас сфера бизнеса?")
		assert.Contains(t, req.Messages[1].Content, "Розничная торговля")

		fmt.Fprint(w, toolCallResponse(validArguments))
	}))
	defer srv.Close()

	c := New(srv.URL, "sk-test", "gpt-4o", 5*time.Second, newNoopLogger())
	p, err := c.Recommend(context.Background(), []AnswerPair{
		{Question: "Какая у вас сфера бизнеса?", Answer: "Розничная торговля"},
		{Question: "Какой у вас бюджет?", Answer: "До 5000 руб."},
	})
	require.NoError(t, err)
	assert.Equal(t, "Стандарт", p.Recommendation)
	assert.Len(t, p.Tariffs, 3)
}

func TestClient_Recommend_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "sk-test", "gpt-4o", 5*time.Second, newNoopLogger())
	_, err := c.Recommend(context.Background(), []AnswerPair{{Question: "q", Answer: "a"}})
	assert.Error(t, err)
}

func TestClient_Recommend_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, toolCallResponse(validArguments))
	}))
	defer srv.Close()

	c := New(srv.URL, "sk-test", "gpt-4o", 50*time.Millisecond, newNoopLogger())
	_, err := c.Recommend(context.Background(), []AnswerPair{{Question: "q", Answer: "a"}})
	assert.Error(t, err)
}
