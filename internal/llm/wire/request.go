// Package wire converts provider-neutral chat requests into the OpenAI chat
// completions wire format, which Mistral and other compatible APIs accept.
package wire

import (
	"agenda/internal/llm"

	openai "github.com/sashabaranov/go-openai"
)

const toolChoiceAuto = "auto"

// Request builds the outbound body for model. Tool choice is left to the
// model whenever tools are offered.
func Request(model string, req *llm.ChatRequest, stream bool) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    Messages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if len(req.Tools) > 0 {
		out.Tools = Tools(req.Tools)
		out.ToolChoice = toolChoiceAuto
	}
	return out
}

func Messages(msgs []llm.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(msgs))
	for i, msg := range msgs {
		result[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return result
}

func Tools(tools []*llm.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		}
	}
	return result
}
