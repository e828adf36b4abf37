package functions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lambda-feedback/isolate/internal/execution/models"
)

type DivideInput struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

type SleepInput struct {
	Duration string `json:"duration"`
}

type FailInput struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Builtin returns a registry holding the built-in functions.
func Builtin() *Registry {
	r := NewRegistry()

	r.Register("echo", Define(Echo))
	r.Register("divide", Define(Divide))
	r.Register("sleep", Define(Sleep))
	r.Register("hang", Define(Hang))
	r.Register("fail", Define(Fail))

	return r
}

// Echo returns its input.
func Echo(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	return input, nil
}

// Divide returns a / b.
func Divide(_ context.Context, input DivideInput) (float64, error) {
	if input.B == 0 {
		return 0, models.Errorf("DivideByZeroException", "Attempted to divide by zero.")
	}

	return input.A / input.B, nil
}

// Sleep waits for the given duration, or until it is cancelled.
func Sleep(ctx context.Context, input SleepInput) (string, error) {
	d, err := time.ParseDuration(input.Duration)
	if err != nil {
		return "", fmt.Errorf("invalid duration: %w", err)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return fmt.Sprintf("slept %s", d), nil
	}
}

// Hang never returns and ignores cancellation.
func Hang(context.Context, json.RawMessage) (json.RawMessage, error) {
	for {
		time.Sleep(time.Hour)
	}
}

// Fail returns an exception with the given type and message.
func Fail(_ context.Context, input FailInput) (json.RawMessage, error) {
	return nil, models.Errorf(input.Type, "%s", input.Message)
}
