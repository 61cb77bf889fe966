package core

// ChatRequest represents the incoming chat completion request
type ChatRequest struct {
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream,omitempty"`
	// APIKey is accepted in the body for clients that cannot set headers.
	// The Authorization header takes precedence.
	APIKey string `json:"apiKey,omitempty"`
}

// CompletionRequest represents the legacy text completion request
type CompletionRequest struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	APIKey      string   `json:"apiKey,omitempty"`
}

// Message represents a single message in the chat
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse represents the chat completion response
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
	// SystemFingerprint is an opaque per-response correlation tag, not a
	// cryptographic value.
	SystemFingerprint string `json:"system_fingerprint,omitempty"`
}

// Choice represents a single chat completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// CompletionResponse represents the legacy text completion response
type CompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   Usage              `json:"usage"`
}

// CompletionChoice represents a single text completion choice
type CompletionChoice struct {
	Text         string      `json:"text"`
	Index        int         `json:"index"`
	Logprobs     interface{} `json:"logprobs"`
	FinishReason string      `json:"finish_reason"`
}

// Usage represents token usage information.
// Counts are whitespace-split word counts, not tokenizer counts; the
// prompt is always counted as zero. Existing clients depend on this shape.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChunkResponse represents one SSE chunk in a streamed chat completion.
// Every chunk of a stream shares the same ID and Created values.
type ChunkResponse struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	// SystemFingerprint matches the value every chunk of the stream shares.
	SystemFingerprint string `json:"system_fingerprint,omitempty"`
}

// ChunkChoice represents the delta carried by one chunk
type ChunkChoice struct {
	Delta        Delta   `json:"delta"`
	Index        int     `json:"index"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental payload of a streamed chunk
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Model represents a single model in the models list
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelsResponse represents the response from the /v1/models endpoint
type ModelsResponse struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
