package gateways

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/reusee/distill/cmds"
	"github.com/reusee/distill/logs"
	"github.com/reusee/distill/nets"
	"github.com/reusee/distill/vars"
	"github.com/reusee/dscope"
)

var debugOpenAI = cmds.Switch("-debug-openai")

// OpenAI talks to any endpoint implementing the streaming chat completions API.
type OpenAI struct {
	args   Args
	apiKey string
	client nets.HTTPClient

	Logger     dscope.Inject[logs.Logger]
	Retries    dscope.Inject[GatewayRetries]
	RetryDelay dscope.Inject[RetryDelay]
}

var _ Gateway = new(OpenAI)

func (o *OpenAI) Args() Args {
	return o.args
}

func (o *OpenAI) Model() string {
	return o.args.Model
}

func (o *OpenAI) Send(ctx context.Context, messages []Message) (*Response, error) {
	start := time.Now()
	maxAttempts := 1 + max(0, int(o.Retries()))
	delay := time.Duration(o.RetryDelay())

	var err error
	attempt := 0
	for attempt < maxAttempts {
		attempt++
		var resp *Response
		resp, err = o.send(ctx, messages)
		if err == nil {
			resp.Elapsed = time.Since(start)
			return resp, nil
		}
		if !errors.Is(err, ErrRetryable) || attempt >= maxAttempts {
			break
		}
		o.Logger().WarnContext(ctx, "retrying",
			"model", o.args.Model,
			"attempt", attempt,
			"error", err,
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			err = errors.Join(err, ctx.Err())
			return nil, &CallError{
				Model:    o.args.Model,
				Attempts: attempt,
				Err:      err,
			}
		case <-timer.C:
		}
		delay = min(delay*2, maxRetryDelay)
	}

	return nil, &CallError{
		Model:    o.args.Model,
		Attempts: attempt,
		Err:      err,
	}
}

const maxRetryDelay = 30 * time.Second

func (o *OpenAI) send(ctx context.Context, messages []Message) (*Response, error) {
	req := ChatCompletionRequest{
		Model:    o.args.Model,
		Messages: messages,
		Stream:   true,
		StreamOptions: &StreamOptions{
			IncludeUsage: true,
		},
		Temperature:         o.args.Temperature,
		MaxCompletionTokens: vars.DerefOrZero(o.args.MaxGenerateTokens),
	}

	bodyBytes, err := o.marshalRequest(req)
	if err != nil {
		return nil, err
	}

	if *debugOpenAI {
		o.Logger().InfoContext(ctx, "open ai request",
			"model", o.args.Model,
			"body", string(bodyBytes),
		)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", strings.TrimSuffix(o.args.BaseURL, "/")+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for k, v := range o.args.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		// connection level failures are transient
		return nil, errors.Join(wrap(err), ErrRetryable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	ret := &Response{
		Model: o.args.Model,
	}
	var content strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*K), 16*K*K)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "data: [DONE]") {
			break
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)

		var streamResp ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(data), &streamResp); err != nil {
			return nil, fmt.Errorf("error unmarshalling stream response: %w", err)
		}
		if streamResp.Error != nil {
			if isRetryableStatus(streamResp.Error.HTTPStatusCode) {
				return nil, errors.Join(streamResp.Error, ErrRetryable)
			}
			return nil, streamResp.Error
		}

		if streamResp.Model != "" {
			ret.Model = streamResp.Model
		}
		if streamResp.Usage != nil {
			ret.Usage = Usage{
				InputTokens:  streamResp.Usage.PromptTokens,
				OutputTokens: streamResp.Usage.CompletionTokens,
			}
		}
		if len(streamResp.Choices) == 0 {
			continue
		}
		choice := streamResp.Choices[0]
		content.WriteString(choice.Delta.Content)
		if choice.FinishReason != "" {
			ret.FinishReason = choice.FinishReason
			if choice.FinishReason == "error" {
				return nil, errors.Join(errors.New("finish reason: error"), ErrRetryable)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.Join(fmt.Errorf("error reading stream: %w", err), ErrRetryable)
	}

	ret.Content = content.String()
	return ret, nil
}

func (o *OpenAI) marshalRequest(req ChatCompletionRequest) ([]byte, error) {
	bs, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if len(o.args.ExtraArguments) == 0 {
		return bs, nil
	}
	var m map[string]any
	if err := json.Unmarshal(bs, &m); err != nil {
		return nil, err
	}
	for k, v := range o.args.ExtraArguments {
		m[k] = v
	}
	return json.Marshal(m)
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*K))
	var err error
	var errResp ErrorResponse
	if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error != nil {
		errResp.Error.HTTPStatusCode = resp.StatusCode
		err = errResp.Error
	} else {
		err = &APIError{
			Message:        strings.TrimSpace(string(body)),
			HTTPStatusCode: resp.StatusCode,
		}
	}
	if isRetryableStatus(resp.StatusCode) {
		return errors.Join(err, ErrRetryable)
	}
	return err
}

type NewOpenAI func(args Args, apiKey string) *OpenAI

func (Module) NewOpenAI(
	inject dscope.InjectStruct,
	client nets.HTTPClient,
) NewOpenAI {
	return func(args Args, apiKey string) *OpenAI {
		ret := &OpenAI{
			args:   args,
			client: client,
			apiKey: apiKey,
		}
		inject(&ret)
		return ret
	}
}

type ChatCompletionRequest struct {
	Model               string         `json:"model"`
	Messages            []Message      `json:"messages"`
	Stream              bool           `json:"stream"`
	StreamOptions       *StreamOptions `json:"stream_options,omitempty"`
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
	Temperature         *float32       `json:"temperature,omitempty"`
}

type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type ChatCompletionStreamResponse struct {
	Model   string                       `json:"model,omitempty"`
	Choices []ChatCompletionStreamChoice `json:"choices"`
	Usage   *CompletionUsage             `json:"usage,omitempty"`
	Error   *APIError                    `json:"error,omitempty"`
}

type ChatCompletionStreamChoice struct {
	Delta        ChatCompletionStreamChoiceDelta `json:"delta"`
	FinishReason string                          `json:"finish_reason"`
}

type ChatCompletionStreamChoiceDelta struct {
	Content          string `json:"content,omitempty"`
	Role             string `json:"role,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

type CompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
