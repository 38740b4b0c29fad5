package rag

import (
	"fmt"

	"github.com/prepbot/prepbot/internal/memory"
)

// rewriteSystemPrompt turns a follow-up question into a standalone
// retrieval query using the conversation history.
const rewriteSystemPrompt = `You rewrite the user's latest message into a standalone search query.

Rules:
- Resolve pronouns and references ("it", "that", "the third one") using the conversation history.
- Keep all technical terms from both the message and the relevant history.
- Output only the rewritten query, nothing else.
- If the message is already self-contained, return it unchanged.`

// answerSystemPrompt guides the answer call. The context block and
// style instruction are appended per request.
const answerSystemPrompt = `You are an assistant helping candidates prepare for technical interviews.
Answer the question using the provided context passages. Ground every claim in the context when possible.
If the context does not cover the question, say so and answer from general knowledge.
Format answers in Markdown; put code in fenced code blocks.`

// placeholderContext stands in for the context block when retrieval
// produced nothing, so the prompt template stays well-formed.
const placeholderContext = "(no context available)"

// styleInstruction maps a user's style preference to prompt wording.
func styleInstruction(style memory.Style) string {
	switch style {
	case memory.StyleDetailed:
		return "Answer in detail and include a concrete example."
	case memory.StyleSocratic:
		return "First ask 1-3 guiding questions that lead toward the answer, then give the answer."
	default:
		return "Answer briefly, in a few sentences."
	}
}

// answerPrompt builds the user message for the answer call.
func answerPrompt(question, context string, style memory.Style) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\n%s", context, question, styleInstruction(style))
}
