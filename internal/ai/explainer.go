package ai

import (
	"context"
	"fmt"

	"github.com/medassist/medassist-ai-platform/pkg/logging"
)

// ExplanationPlaceholder replaces the explanation whenever generation fails.
// Explanation is best-effort and never blocks delivery of the primary answer.
const ExplanationPlaceholder = "Explanation temporarily unavailable."

const explainerPersona = "You are an AI explainability expert. Provide clear, specific explanations of WHY an AI gave a particular response. Focus on the unique aspects of each interaction. Be concise but insightful."

// Explainer generates a secondary rationale for a question/answer pair.
type Explainer struct {
	chat   ChatCompleter
	logger *logging.Logger
}

// NewExplainer creates an explanation generator backed by the given completer.
func NewExplainer(chat ChatCompleter, logger *logging.Logger) *Explainer {
	if chat == nil {
		panic("ai: chat completer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Explainer{chat: chat, logger: logger}
}

// Explain requests a completion that rationalizes the given answer. A failed
// request degrades to ExplanationPlaceholder rather than an error.
func (e *Explainer) Explain(ctx context.Context, question, answer, contextText string) string {
	prompt := buildExplanationPrompt(question, answer, contextText)

	messages := []ChatMessage{
		{Role: ChatRoleSystem, Content: explainerPersona},
		{Role: ChatRoleUser, Content: prompt},
	}

	explanation, err := e.chat.CompleteChat(ctx, messages, ExplainTemperature, ExplainMaxTokens)
	if err != nil {
		e.logger.Warn("explanation generation failed", "error", err)
		return ExplanationPlaceholder
	}
	return explanation
}

func buildExplanationPrompt(question, answer, contextText string) string {
	prompt := fmt.Sprintf(`Analyze this medical AI interaction and provide a clear, specific explanation of WHY this particular response was generated.

USER QUESTION: %q

AI RESPONSE: %q

`, question, answer)

	if contextText != "" {
		prompt += fmt.Sprintf("CONVERSATION CONTEXT: %s\n\n", contextText)
	}

	prompt += `Provide a dynamic, unique explanation that covers:
1. Key medical concepts or symptoms identified in the question
2. Why specific advice or information was prioritized in the response
3. What factors influenced the tone and depth of the answer
4. How context or medical best practices shaped the guidance

Be specific to THIS interaction - avoid generic templates. Make it educational and insightful.`

	return prompt
}
