package mock

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one message of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the subset of the chat completion request the mock reads.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse mirrors the chat completion response shape.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// Complete answers req with a canned reply that quotes the prompt subject.
func Complete(req ChatRequest, now time.Time) (ChatResponse, error) {
	if len(req.Messages) == 0 {
		return ChatResponse{}, fmt.Errorf("messages must not be empty")
	}
	prompt := req.Messages[len(req.Messages)-1].Content
	reply := cannedReply(prompt)

	promptTokens := len(strings.Fields(prompt))
	completionTokens := len(strings.Fields(reply))
	return ChatResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: now.Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      ChatMessage{Role: "assistant", Content: reply},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

func cannedReply(prompt string) string {
	subject := "your message"
	for _, line := range strings.Split(prompt, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "Subject:"); ok && strings.TrimSpace(v) != "" {
			subject = fmt.Sprintf("%q", strings.TrimSpace(v))
			break
		}
	}
	return fmt.Sprintf("Hi,\n\nThanks for reaching out about %s. I have received it and will follow up shortly.\n\nBest regards", subject)
}
