package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"kudos-chat/internal/models"
	"kudos-chat/internal/oracle"
	"kudos-chat/internal/style"
)

const (
	// FallbackReply is appended when a turn's oracle call fails.
	FallbackReply = "Sorry, I lost my train of thought for a second. What were you saying?"
	// FallbackCompliment is used when compliment generation fails; the
	// phase transition must never block on the oracle.
	FallbackCompliment = "You were a really thoughtful conversation partner. I enjoyed talking with you!"

	replyMaxTokens      = 150
	complimentMaxTokens = 80

	replyTemperature      = 0.9
	complimentTemperature = 0.4
)

// Pipeline turns a transcript into counterpart text: it detects the user's
// register, frames a persona-bound prompt and asks the oracle. Every oracle
// failure is absorbed here and replaced with a fixed fallback, so callers
// never see an error.
type Pipeline struct {
	oracle oracle.Oracle
}

// New creates a Pipeline over the given oracle.
func New(o oracle.Oracle) *Pipeline {
	return &Pipeline{oracle: o}
}

// Reply produces the counterpart's next turn for a conversation. newSelfText
// is the message that triggered the turn; it is included in both style
// detection and the prompt.
func (p *Pipeline) Reply(ctx context.Context, conv *models.Conversation, newSelfText string) string {
	selfTexts := append(conv.SelfTexts(), newSelfText)
	register := style.Classify(selfTexts)

	messages := []oracle.ChatMessage{
		{Role: oracle.RoleSystem, Content: replySystemPrompt(register, conv.Persona)},
	}
	messages = append(messages, transcriptMessages(conv.Messages)...)
	messages = append(messages, oracle.ChatMessage{Role: oracle.RoleUser, Content: newSelfText})

	text, err := p.oracle.Complete(ctx, oracle.Request{
		Messages:    messages,
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemperature,
	})
	if err != nil {
		log.Printf("[Pipeline] Reply generation failed, using fallback conversation_id=%s err=%v",
			conv.ID, err)
		return FallbackReply
	}

	return text
}

// Compliment produces the counterpart's closing compliment about the user.
func (p *Pipeline) Compliment(ctx context.Context, conv *models.Conversation) string {
	messages := []oracle.ChatMessage{
		{Role: oracle.RoleSystem, Content: complimentSystemPrompt(conv.Persona)},
	}
	messages = append(messages, transcriptMessages(conv.Messages)...)
	messages = append(messages, oracle.ChatMessage{
		Role:    oracle.RoleUser,
		Content: "The conversation is over. Write a short, genuine compliment about your conversation partner based on what they said.",
	})

	text, err := p.oracle.Complete(ctx, oracle.Request{
		Messages:    messages,
		MaxTokens:   complimentMaxTokens,
		Temperature: complimentTemperature,
	})
	if err != nil {
		log.Printf("[Pipeline] Compliment generation failed, using fallback conversation_id=%s err=%v",
			conv.ID, err)
		return FallbackCompliment
	}

	return text
}

// replySystemPrompt builds the system instruction for a chat turn, embedding
// the detected register and, when present, the persona to stay in character as.
func replySystemPrompt(register style.Register, p *models.Persona) string {
	var b strings.Builder

	b.WriteString("You are chatting with a stranger in a short, timed conversation.")

	switch register {
	case style.RegisterCasual:
		b.WriteString(" Match their casual tone: relaxed, use slang naturally, keep it light.")
	case style.RegisterFormal:
		b.WriteString(" Match their polite tone: well-formed sentences, courteous and considered.")
	default:
		b.WriteString(" Keep a friendly, balanced tone.")
	}

	if p != nil {
		fmt.Fprintf(&b, " You are %s, %d, from %s. Your interests are %s.",
			p.Name, p.Age, p.Location, strings.Join(p.Interests, ", "))
		b.WriteString(" Stay in character at all times and never reveal that you are not human.")
	}

	b.WriteString(" Keep replies to one or two sentences.")
	return b.String()
}

func complimentSystemPrompt(p *models.Persona) string {
	var b strings.Builder

	b.WriteString("You just finished a short chat with a stranger.")
	if p != nil {
		fmt.Fprintf(&b, " You are %s from %s; stay in character and never reveal that you are not human.",
			p.Name, p.Location)
	}
	b.WriteString(" Respond with only the compliment, one or two sentences, warm and specific.")
	return b.String()
}

// transcriptMessages maps the stored transcript onto oracle roles: the
// counterpart's words become assistant turns, the user's become user turns.
func transcriptMessages(messages []models.Message) []oracle.ChatMessage {
	out := make([]oracle.ChatMessage, 0, len(messages))
	for _, m := range messages {
		role := oracle.RoleUser
		if m.Author == models.AuthorCounterpart {
			role = oracle.RoleAssistant
		}
		out = append(out, oracle.ChatMessage{Role: role, Content: m.Text})
	}
	return out
}
