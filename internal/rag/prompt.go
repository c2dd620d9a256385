package rag

import (
	"fmt"
	"strings"

	"github.com/roeisharon/MedAI/internal/llmservice"
	"github.com/roeisharon/MedAI/internal/models"
)

// FormatContext renders retrieved chunks as labelled excerpt blocks for the
// system prompt: "[Page P — Section]" followed by the chunk text.
func FormatContext(chunks []models.RetrievedChunk) string {
	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		label := fmt.Sprintf("[Page %d", c.Page)
		if c.Section != "" {
			label += " — " + c.Section
		}
		label += "]"
		blocks = append(blocks, label+"\n"+c.Text)
	}
	return strings.Join(blocks, models.ContextSeparator)
}

// BuildGroundedMessages assembles the full message sequence for a leaflet
// question: the grounding system prompt with the retrieved excerpts embedded,
// the prior turns, and the current question last.
func BuildGroundedMessages(context string, history []models.Turn, question string) []llmservice.Message {
	messages := make([]llmservice.Message, 0, len(history)+2)
	messages = append(messages, llmservice.Message{
		Role:    llmservice.RoleSystem,
		Content: fmt.Sprintf(models.MedicalSystemPrompt, context),
	})
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, llmservice.Message{Role: llmservice.RoleUser, Content: question})
	return messages
}

// BuildGreetingMessages assembles the short social-path sequence: no leaflet
// context, no history.
func BuildGreetingMessages(question string) []llmservice.Message {
	return []llmservice.Message{
		{Role: llmservice.RoleSystem, Content: models.GreetingSystemPrompt},
		{Role: llmservice.RoleUser, Content: question},
	}
}

// historyMessages converts stored turns to model messages. Structural tags
// are stripped from prior assistant content so leftover formatting does not
// teach the model to echo stale citations.
func historyMessages(history []models.Turn) []llmservice.Message {
	messages := make([]llmservice.Message, 0, len(history))
	for _, turn := range history {
		if turn.Role == models.RoleUser {
			messages = append(messages, llmservice.Message{Role: llmservice.RoleUser, Content: turn.Content})
			continue
		}
		clean, _ := ParseResponse(turn.Content, nil)
		if clean == "" {
			clean = turn.Content
		}
		messages = append(messages, llmservice.Message{Role: llmservice.RoleAssistant, Content: clean})
	}
	return messages
}
