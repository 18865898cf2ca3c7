package transform

import (
	"fmt"
	"strings"

	"github.com/opentranslate/mdtran/internal/glossary"
)

// buildSystemPrompt constructs the system message for chat-based
// backends, optionally injecting the glossary terms found in the block
// and extra caller instructions.
func buildSystemPrompt(targetLang string, terms []glossary.Term, instructions string) string {
	var sb strings.Builder

	lang := targetLang
	if lang == "" {
		lang = "the requested language"
	}
	sb.WriteString(fmt.Sprintf("You are a professional translator. Translate the user's Markdown from its original language to %s.\n", lang))
	sb.WriteString("Preserve the Markdown structure, markers and inline formatting exactly. Only respond with the translation, nothing else. No explanations, no quotes, just the translation.")

	if instructions != "" {
		sb.WriteString(" ")
		sb.WriteString(instructions)
	}

	if len(terms) > 0 {
		sb.WriteString("\n\nTERMINOLOGY (use these exact forms):\n")
		for _, t := range terms {
			if t.Translation == "" {
				sb.WriteString(fmt.Sprintf("  %s → do not translate\n", t.Term))
			} else {
				sb.WriteString(fmt.Sprintf("  %s → %s\n", t.Term, t.Translation))
			}
		}
	}

	return sb.String()
}

// chatMessage is the wire shape shared by the chat-style backends.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// buildMessages renders a request as chat turns: system prompt, one
// user/assistant pair per reference example, then the block itself.
func buildMessages(req Request, instructions string) []chatMessage {
	messages := make([]chatMessage, 0, 2+2*len(req.ReferencePairs))
	messages = append(messages, chatMessage{Role: "system", Content: buildSystemPrompt(req.TargetLang, req.GlossaryTerms, instructions)})
	for _, pair := range req.ReferencePairs {
		messages = append(messages, chatMessage{Role: "user", Content: pair.Source})
		messages = append(messages, chatMessage{Role: "assistant", Content: pair.Target})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Text})
	return messages
}
