package queue

import (
	"testing"
	"time"
)

func TestSinkPublishAndCurrent(t *testing.T) {
	s := NewSink()
	s.Publish("line one")
	s.Publish("line two")
	want := "line one\nline two\n"
	if got := s.Current(); got != want {
		t.Fatalf("Current() = %q, want %q", got, want)
	}
}

func TestSinkSubscribeReceivesSubsequentLines(t *testing.T) {
	s := NewSink()
	s.Publish("before subscribing")

	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.Publish("after subscribing")

	select {
	case line := <-ch:
		if line != "after subscribing" {
			t.Fatalf("got %q, want %q", line, "after subscribing")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published line")
	}
}

func TestSinkCloseFreezesCurrentAndClosesSubscribers(t *testing.T) {
	s := NewSink()
	s.Publish("one")
	ch, _ := s.Subscribe()

	s.Close()
	s.Publish("two") // must be a no-op after Close

	if got := s.Current(); got != "one\n" {
		t.Fatalf("Current() after Close = %q, want %q", got, "one\n")
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed, not deliver a value")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber channel to close")
	}
}

func TestSinkUnsubscribeStopsDelivery(t *testing.T) {
	s := NewSink()
	ch, unsubscribe := s.Subscribe()
	unsubscribe()
	s.Publish("should not be delivered")

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("received a value on an unsubscribed channel")
		}
	case <-time.After(50 * time.Millisecond):
		// No delivery within a short window is the expected outcome.
	}
}
