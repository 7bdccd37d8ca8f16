package cadence

import (
	"testing"
	"time"

	"go.uber.org/goleak"
	testingclock "k8s.io/utils/clock/testing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var mondayUTC = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newFakeClock(at time.Time) *testingclock.FakeClock {
	return testingclock.NewFakeClock(at)
}

// recv waits for one value or fails the test.
func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

// none asserts that nothing arrives on ch for a short while.
func none[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value: %v", v)
	case <-time.After(30 * time.Millisecond):
	}
}

func stop(t *testing.T, h *Handle) {
	t.Helper()
	h.Stop()
	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handle did not stop")
	}
}
