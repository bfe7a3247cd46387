package wire

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRouterDispatch(t *testing.T) {
	r := NewRouter()
	r.Handle(RouteProfile, VerbGET, func(Envelope) (json.RawMessage, error) {
		return json.RawMessage(`{"name":"supa"}`), nil
	})

	resp := r.Dispatch(Envelope{Route: RouteProfile, Verb: VerbGET})
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if string(resp.Response) != `{"name":"supa"}` {
		t.Errorf("unexpected response: %s", resp.Response)
	}
}

func TestRouterDispatchUnknownRoute(t *testing.T) {
	r := NewRouter()
	resp := r.Dispatch(Envelope{Route: "nope", Verb: VerbGET})
	if resp.Error == "" {
		t.Errorf("expected error for unregistered route")
	}
}

func TestBroadcastValidation(t *testing.T) {
	r := NewRouter()
	var received []Envelope
	r.Subscribe(func(e Envelope) { received = append(received, e) })
	r.ValidateBroadcastFor(RouteThreads, func(Envelope) error {
		return errors.New("not authorized")
	})

	if err := r.Broadcast(RouteThreads, BroadcastPOST, nil); err == nil {
		t.Errorf("expected broadcast to be rejected by validator")
	}
	if len(received) != 0 {
		t.Errorf("expected no delivery after rejection")
	}
}

func TestBroadcastDelivery(t *testing.T) {
	r := NewRouter()
	var received []Envelope
	r.Subscribe(func(e Envelope) { received = append(received, e) })

	if err := r.Broadcast(RouteThreads, BroadcastPOST, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(received) != 1 || received[0].Route != RouteThreads {
		t.Errorf("expected one delivered broadcast, got %+v", received)
	}
}
