package gateways

import (
	"github.com/reusee/distill/configs"
	"github.com/reusee/distill/vars"
)

const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	TogetherBaseURL   = "https://api.together.xyz/v1"
	DeepseekBaseURL   = "https://api.deepseek.com/v1"
	GeminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai"
	OllamaBaseURL     = "http://127.0.0.1:11434/v1"
	VLLMBaseURL       = "http://127.0.0.1:8000/v1"
)

type NewOpenAIProvider func(args Args) *OpenAI

func (Module) NewOpenAIProvider(
	newOpenAI NewOpenAI,
	apiKey OpenAIAPIKey,
) NewOpenAIProvider {
	return func(args Args) *OpenAI {
		args.BaseURL = vars.FirstNonZero(args.BaseURL, OpenAIBaseURL)
		return newOpenAI(args, vars.FirstNonZero(args.APIKey, string(apiKey)))
	}
}

type NewOpenRouter func(args Args) *OpenAI

func (Module) NewOpenRouter(
	newOpenAI NewOpenAI,
	apiKey OpenRouterAPIKey,
	loader configs.Loader,
) NewOpenRouter {
	return func(args Args) *OpenAI {
		args.BaseURL = vars.FirstNonZero(
			args.BaseURL,
			configs.First[string](loader, "openrouter_endpoint"),
			OpenRouterBaseURL,
		)
		args.IsOpenRouter = true
		return newOpenAI(args, vars.FirstNonZero(args.APIKey, string(apiKey)))
	}
}

type NewTogether func(args Args) *OpenAI

func (Module) NewTogether(
	newOpenAI NewOpenAI,
	apiKey TogetherAPIKey,
) NewTogether {
	return func(args Args) *OpenAI {
		args.BaseURL = vars.FirstNonZero(args.BaseURL, TogetherBaseURL)
		return newOpenAI(args, vars.FirstNonZero(args.APIKey, string(apiKey)))
	}
}

type NewDeepseek func(args Args) *OpenAI

func (Module) NewDeepseek(
	newOpenAI NewOpenAI,
	apiKey DeepseekAPIKey,
) NewDeepseek {
	return func(args Args) *OpenAI {
		args.BaseURL = vars.FirstNonZero(args.BaseURL, DeepseekBaseURL)
		return newOpenAI(args, vars.FirstNonZero(args.APIKey, string(apiKey)))
	}
}

type NewGemini func(args Args) *OpenAI

func (Module) NewGemini(
	newOpenAI NewOpenAI,
	apiKey GoogleAPIKey,
) NewGemini {
	return func(args Args) *OpenAI {
		args.BaseURL = vars.FirstNonZero(args.BaseURL, GeminiBaseURL)
		return newOpenAI(args, vars.FirstNonZero(args.APIKey, string(apiKey)))
	}
}

type NewOllama func(args Args) *OpenAI

func (Module) NewOllama(
	newOpenAI NewOpenAI,
) NewOllama {
	return func(args Args) *OpenAI {
		args.BaseURL = vars.FirstNonZero(args.BaseURL, OllamaBaseURL)
		return newOpenAI(args, args.APIKey)
	}
}

type NewVLLM func(args Args) *OpenAI

func (Module) NewVLLM(
	newOpenAI NewOpenAI,
	loader configs.Loader,
) NewVLLM {
	return func(args Args) *OpenAI {
		args.BaseURL = vars.FirstNonZero(
			args.BaseURL,
			configs.First[string](loader, "vllm_endpoint"),
			VLLMBaseURL,
		)
		return newOpenAI(args, args.APIKey)
	}
}
