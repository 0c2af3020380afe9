package gateways

type Args struct {
	BaseURL           string            `json:"base_url"`
	APIKey            string            `json:"api_key"`
	Model             string            `json:"model"`
	MaxGenerateTokens *int              `json:"max_generate_tokens"`
	Temperature       *float32          `json:"temperature"`
	ExtraArguments    map[string]any    `json:"extra_arguments"`
	Headers           map[string]string `json:"headers"`
	IsOpenRouter      bool              `json:"is_open_router"`
}
