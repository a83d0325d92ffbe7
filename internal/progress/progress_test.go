package progress

import (
	"bytes"
	"sync"
	"testing"
)

func TestDisabledIsNoop(t *testing.T) {
	p := New(10, false)
	if p.Enabled() {
		t.Fatal("Enabled() = true for a disabled bar")
	}
	p.Increment("book.epub")
	p.Finish()
}

func TestConcurrentIncrement(t *testing.T) {
	var buf bytes.Buffer
	p := NewWithOutput(&buf, 20)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Increment("file")
		}()
	}
	wg.Wait()
	p.Finish()

	if !p.bar.Completed() {
		t.Error("bar not completed after all increments")
	}
}

func TestFinishEarly(t *testing.T) {
	var buf bytes.Buffer
	p := NewWithOutput(&buf, 5)
	p.Increment("one")
	p.Finish()
}
