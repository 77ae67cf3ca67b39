package llm

import "context"

type Message struct {
	Role    string
	Content string
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client is the completion gateway: given the active system prompt and an
// ordered message history it returns generated text. It holds no state of
// its own and must be safe to call concurrently.
type Client interface {
	Complete(ctx context.Context, systemPrompt string, messages []Message) (Response, error)
}
