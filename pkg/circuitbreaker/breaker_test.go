package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Name:             "test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 3,
		FailureRatio:     0.6,
		MinRequests:      100,
	}
}

func TestExecuteSuccess(t *testing.T) {
	cb := New(testConfig(), nil, nil)
	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("state = %s, want closed", cb.GetState())
	}
}

func TestExecutePassesThroughError(t *testing.T) {
	cb := New(testConfig(), nil, nil)
	callErr := errors.New("renderer down")

	err := cb.Execute(context.Background(), func() error { return callErr })
	if !errors.Is(err, callErr) {
		t.Fatalf("got %v, want wrapped call error", err)
	}
	if errors.Is(err, ErrOpen) {
		t.Error("single failure reported as open circuit")
	}
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(testConfig(), nil, nil)
	callErr := errors.New("renderer down")

	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), func() error { return callErr })
	}

	if !cb.IsOpen() {
		t.Fatalf("state = %s, want open after %d failures", cb.GetState(), 3)
	}

	err := cb.Execute(context.Background(), func() error {
		t.Error("call executed while circuit open")
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("got %v, want ErrOpen", err)
	}
}

func TestStateValues(t *testing.T) {
	if stateValue(StateClosed) != 0 || stateValue(StateHalfOpen) != 1 || stateValue(StateOpen) != 2 {
		t.Error("gauge scale changed")
	}
}
