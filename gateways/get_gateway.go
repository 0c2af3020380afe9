package gateways

import (
	"fmt"
	"strings"
)

type GetGateway func(name string) (Gateway, error)

// GetGateway resolves a model name: user defined specs first, then `provider:model`
// shorthands, then well known model name prefixes.
func (Module) GetGateway(
	getSpecs GetModelSpecs,
	newOpenAI NewOpenAIProvider,
	newOpenRouter NewOpenRouter,
	newTogether NewTogether,
	newDeepseek NewDeepseek,
	newGemini NewGemini,
	newOllama NewOllama,
	newVLLM NewVLLM,
) GetGateway {

	byProvider := func(provider string, args Args) (Gateway, error) {
		switch strings.ToLower(provider) {
		case "openai", "open-ai", "open_ai":
			return newOpenAI(args), nil
		case "openrouter", "open-router", "open_router":
			return newOpenRouter(args), nil
		case "together", "together-ai", "together_ai":
			return newTogether(args), nil
		case "deepseek":
			return newDeepseek(args), nil
		case "gemini", "google":
			return newGemini(args), nil
		case "ollama":
			return newOllama(args), nil
		case "vllm":
			return newVLLM(args), nil
		}
		return nil, fmt.Errorf("unknown provider: %q", provider)
	}

	return func(name string) (Gateway, error) {
		if name == "" {
			return nil, fmt.Errorf("empty model name")
		}

		// user-defined first
		specs, err := getSpecs()
		if err != nil {
			return nil, err
		}
		for _, spec := range specs {
			if spec.Name != name {
				continue
			}
			args := spec.Args
			if args.Model == "" {
				args.Model = spec.Name
			}
			return byProvider(spec.Type, args)
		}

		// shorthand
		if provider, model, ok := strings.Cut(name, ":"); ok {
			if gateway, err := byProvider(provider, Args{Model: model}); err == nil {
				return gateway, nil
			}
		}

		// well known names
		lower := strings.ToLower(name)
		switch {
		case strings.HasPrefix(lower, "gpt-"),
			strings.HasPrefix(lower, "o1"),
			strings.HasPrefix(lower, "o3"),
			strings.HasPrefix(lower, "o4"):
			return newOpenAI(Args{Model: name}), nil
		case strings.HasPrefix(lower, "gemini-"):
			return newGemini(Args{Model: name}), nil
		case strings.HasPrefix(lower, "deepseek-"):
			return newDeepseek(Args{Model: name}), nil
		case strings.Contains(name, "/"):
			// vendor/model names as used by together and openrouter
			return newTogether(Args{Model: name}), nil
		}

		return nil, fmt.Errorf("invalid model: %s", name)
	}
}
