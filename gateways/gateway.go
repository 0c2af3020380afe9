package gateways

import (
	"context"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

type Response struct {
	Content      string
	Usage        Usage
	Model        string
	FinishReason string
	Elapsed      time.Duration
}

// Gateway sends a conversation to a model and returns the completed response.
// Implementations must be safe for concurrent use.
type Gateway interface {
	Model() string
	Send(ctx context.Context, messages []Message) (*Response, error)
}

type GatewayFunc struct {
	Name string
	Func func(ctx context.Context, messages []Message) (*Response, error)
}

var _ Gateway = GatewayFunc{}

func (g GatewayFunc) Model() string {
	return g.Name
}

func (g GatewayFunc) Send(ctx context.Context, messages []Message) (*Response, error) {
	return g.Func(ctx, messages)
}
