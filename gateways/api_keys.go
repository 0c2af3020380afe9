package gateways

import (
	"os"

	"github.com/reusee/distill/configs"
	"github.com/reusee/distill/vars"
)

type (
	OpenAIAPIKey     string
	OpenRouterAPIKey string
	TogetherAPIKey   string
	DeepseekAPIKey   string
	GoogleAPIKey     string
)

func (Module) OpenAIAPIKey(
	loader configs.Loader,
) OpenAIAPIKey {
	return vars.FirstNonZero(
		configs.First[OpenAIAPIKey](loader, "openai_api_key"),
		OpenAIAPIKey(os.Getenv("OPENAI_API_KEY")),
	)
}

func (Module) OpenRouterAPIKey(
	loader configs.Loader,
) OpenRouterAPIKey {
	return vars.FirstNonZero(
		configs.First[OpenRouterAPIKey](loader, "openrouter_api_key"),
		OpenRouterAPIKey(os.Getenv("OPENROUTER_API_KEY")),
		OpenRouterAPIKey(os.Getenv("OPEN_ROUTER_API_KEY")),
	)
}

func (Module) TogetherAPIKey(
	loader configs.Loader,
) TogetherAPIKey {
	return vars.FirstNonZero(
		configs.First[TogetherAPIKey](loader, "together_api_key"),
		TogetherAPIKey(os.Getenv("TOGETHER_API_KEY")),
	)
}

func (Module) DeepseekAPIKey(
	loader configs.Loader,
) DeepseekAPIKey {
	return vars.FirstNonZero(
		configs.First[DeepseekAPIKey](loader, "deepseek_api_key"),
		DeepseekAPIKey(os.Getenv("DEEPSEEK_API_KEY")),
	)
}

func (Module) GoogleAPIKey(
	loader configs.Loader,
) GoogleAPIKey {
	return vars.FirstNonZero(
		configs.First[GoogleAPIKey](loader, "google_api_key"),
		GoogleAPIKey(os.Getenv("GEMINI_API_KEY")),
		GoogleAPIKey(os.Getenv("GOOGLE_API_KEY")),
	)
}
