package gateways

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

var ErrNoResponse = errors.New("no response")

// Send calls gateway.Send, reporting a missing response as a *CallError.
func Send(ctx context.Context, gateway Gateway, messages []Message) (*Response, error) {
	resp, err := gateway.Send(ctx, messages)
	if err == nil && resp == nil {
		return nil, &CallError{
			Model:    gateway.Model(),
			Attempts: 1,
			Err:      ErrNoResponse,
		}
	}
	return resp, err
}

type Result struct {
	Response *Response
	Err      error
}

// SendBatch sends every conversation concurrently and returns results in input order.
// limit <= 0 means no bound. A failed item never cancels the others.
func SendBatch(ctx context.Context, gateway Gateway, batch [][]Message, limit int) []Result {
	results := make([]Result, len(batch))
	var group errgroup.Group
	if limit > 0 {
		group.SetLimit(limit)
	}
	for i, messages := range batch {
		group.Go(func() error {
			resp, err := Send(ctx, gateway, messages)
			results[i] = Result{
				Response: resp,
				Err:      err,
			}
			return nil
		})
	}
	_ = group.Wait()
	return results
}
