package ollama

import (
	"net/http"
	"sync"
	"testing"
	"time"
)

// Creating and closing many clients concurrently must not leave goroutines behind;
// TestMain verifies that with goleak.
func TestClient_CreateAndCloseConcurrently(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := NewClient(Config{BaseURL: "http://localhost:11434"}, &http.Client{})
			if err != nil {
				t.Errorf("new client: %v", err)
				return
			}
			if err := c.Close(); err != nil {
				t.Errorf("close: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestConfigDefaults(t *testing.T) {
	c := Config{Retries: -3}.withDefaults()
	if c.BaseURL == "" || c.Timeout <= 0 || c.Retries != 0 || c.CircuitFailureThreshold <= 0 || c.CircuitReset <= 0 {
		t.Fatalf("defaults not applied: %#v", c)
	}
}

func TestBreaker_OpensAndHalfOpens(t *testing.T) {
	b := newBreaker(2, 20*time.Millisecond)
	b.fail()
	if b.open() {
		t.Fatal("open after one failure")
	}
	b.fail()
	if !b.open() {
		t.Fatal("expected open after reaching the threshold")
	}
	time.Sleep(30 * time.Millisecond)
	if b.open() {
		t.Fatal("expected half-open after reset")
	}
	b.fail()
	b.succeed()
	if b.open() {
		t.Fatal("success must clear failures")
	}
}
