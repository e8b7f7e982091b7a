package llm

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// completionTemplate is a two-message template; callers supply the full
// system and user text as variables so braces inside them are never parsed.
func completionTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{user}"),
	)
}
