package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testError struct {
	value any
}

func (e *testError) Error() string { return fmt.Sprintf("test error: %v", e.value) }

func testClass(value any) error { return &testError{value: value} }

// TestWrapSuccess tests that a success settles the future and releases both slots
func TestWrapSuccess(t *testing.T) {
	op := &Operation{}
	ft := Wrap[string](op)

	if ft.State() != Pending {
		t.Fatalf("Expected pending future, got %s", ft.State())
	}
	if _, _, ok := ft.Result(); ok {
		t.Fatal("Result should not be available while pending")
	}

	op.Succeed("value")

	if !op.Settled() {
		t.Error("Both slots should be released after success")
	}

	v, err := ft.Await(context.Background())
	if err != nil || v != "value" {
		t.Errorf("Expected (value, nil), got (%v, %v)", v, err)
	}
	if ft.State() != Fulfilled {
		t.Errorf("Expected fulfilled, got %s", ft.State())
	}
}

// TestWrapError tests that an error is built from the class and value
func TestWrapError(t *testing.T) {
	op := &Operation{}
	ft := Wrap[int](op)

	op.Fail(testClass, "boom", "at engine.go:42")

	if !op.Settled() {
		t.Error("Both slots should be released after error")
	}

	_, err := ft.Await(context.Background())
	var te *testError
	if !errors.As(err, &te) || te.value != "boom" {
		t.Fatalf("Expected testError(boom), got %v", err)
	}
	if ft.State() != Failed {
		t.Errorf("Expected failed, got %s", ft.State())
	}
	if ft.Trace() != "at engine.go:42" {
		t.Errorf("Unexpected trace %q", ft.Trace())
	}
}

// TestSecondOutcomeIgnored tests that a late second callback does not change the outcome
func TestSecondOutcomeIgnored(t *testing.T) {
	op := &Operation{}
	ft := Wrap[string](op)

	// keep the installed slots around to simulate an engine holding stale references
	onSuccess, onError := op.OnSuccess, op.OnError

	onSuccess("first")
	onError(testClass, "late", "")
	onSuccess("second")

	v, err := ft.Await(context.Background())
	if err != nil || v != "first" {
		t.Errorf("Expected (first, nil), got (%v, %v)", v, err)
	}

	// the released slots make further engine calls no-ops
	op.Succeed("third")
	op.Fail(testClass, "fourth", "")
	if v, _, _ := ft.Result(); v != "first" {
		t.Errorf("Outcome changed to %v", v)
	}
}

// TestConcurrentSettle tests that concurrent callbacks settle exactly once
func TestConcurrentSettle(t *testing.T) {
	for i := 0; i < 100; i++ {
		op := &Operation{}
		ft := Wrap[int](op)
		onSuccess, onError := op.OnSuccess, op.OnError

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); onSuccess(1) }()
		go func() { defer wg.Done(); onError(testClass, 2, "") }()
		wg.Wait()

		select {
		case <-ft.Done():
		default:
			t.Fatal("Future not settled")
		}
	}
}

// TestUnexpectedResult tests that a result of the wrong type rejects the future
func TestUnexpectedResult(t *testing.T) {
	op := &Operation{}
	ft := Wrap[int](op)
	op.Succeed("not an int")

	_, err := ft.Await(context.Background())
	if !errors.Is(err, ErrUnexpectedResult) {
		t.Errorf("Expected ErrUnexpectedResult, got %v", err)
	}
}

// TestNilClass tests that a missing error class still produces an error
func TestNilClass(t *testing.T) {
	op := &Operation{}
	ft := Wrap[int](op)
	op.Fail(nil, "raw", "")

	if _, err := ft.Await(context.Background()); err == nil {
		t.Error("Expected an error")
	}
}

// TestAwaitContext tests that a cancelled wait returns the context error
func TestAwaitContext(t *testing.T) {
	op := &Operation{}
	ft := Wrap[int](op)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := ft.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}

	// the operation is still pending and can complete
	op.Succeed(5)
	if v, err := ft.Await(context.Background()); err != nil || v != 5 {
		t.Errorf("Expected (5, nil), got (%v, %v)", v, err)
	}
}

// TestResolvedRejected tests the pre-settled constructors
func TestResolvedRejected(t *testing.T) {
	if v, err := Resolved(3).Await(context.Background()); err != nil || v != 3 {
		t.Errorf("Resolved: expected (3, nil), got (%v, %v)", v, err)
	}
	boom := errors.New("boom")
	if _, err := Rejected[int](boom).Await(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Rejected: expected boom, got %v", err)
	}
}

// TestConnectorSingleAttempt tests that repeated Connect calls share one attempt
func TestConnectorSingleAttempt(t *testing.T) {
	var attempts atomic.Int32
	var issued *Operation

	c := NewConnector(func(op *Operation) {
		attempts.Add(1)
		issued = op
	})

	if c.Future() != nil {
		t.Fatal("Future should be nil before Connect")
	}

	first := c.Connect()
	second := c.Connect()
	if first != second {
		t.Fatal("Connect must return the same future while pending")
	}
	if c.Connected() {
		t.Error("Should not report connected while pending")
	}

	issued.Succeed(true)

	third := c.Connect()
	if third != first {
		t.Error("Connect must return the same future after completion")
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected one connect attempt, got %d", attempts.Load())
	}
	if !c.Connected() {
		t.Error("Should report connected after success")
	}
}

// TestConnectorFailure tests that a failed connect is not retried
func TestConnectorFailure(t *testing.T) {
	attempts := 0
	c := NewConnector(func(op *Operation) {
		attempts++
		op.Fail(testClass, "refused", "")
	})

	_, err1 := c.Connect().Await(context.Background())
	_, err2 := c.Connect().Await(context.Background())
	if err1 == nil || err2 == nil {
		t.Fatal("Expected both awaits to fail")
	}
	if attempts != 1 {
		t.Errorf("Expected one connect attempt, got %d", attempts)
	}
	if c.Connected() {
		t.Error("Failed connector must not report connected")
	}
}
