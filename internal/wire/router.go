package wire

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Handler answers one request envelope, returning the JSON to put in
// Response or an error to put in Error.
type Handler func(Envelope) (json.RawMessage, error)

// ValidateBroadcast vets a broadcast before it's delivered to subscribers;
// returning an error suppresses delivery (§6, validateBroadcast hooks).
type ValidateBroadcast func(Envelope) error

// Router dispatches request/response verbs by route, and fans broadcasts
// out to subscribers — the small router interface exposed over sockets
// named in §6. It is transport-agnostic: Dispatch and Broadcast are called
// by whatever reads Envelopes off a socket (see duplex.go).
type Router struct {
	mu         sync.RWMutex
	handlers   map[routeVerb]Handler
	validators map[string][]ValidateBroadcast
	subs       []func(Envelope)
}

type routeVerb struct {
	route string
	verb  Verb
}

// NewRouter constructs an empty router.
func NewRouter() *Router {
	return &Router{
		handlers:   make(map[routeVerb]Handler),
		validators: make(map[string][]ValidateBroadcast),
	}
}

// Handle registers a handler for (route, verb).
func (r *Router) Handle(route string, verb Verb, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[routeVerb{route, verb}] = h
}

// ValidateBroadcastFor registers a hook consulted before a BROADCAST on
// route is delivered to subscribers.
func (r *Router) ValidateBroadcastFor(route string, v ValidateBroadcast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[route] = append(r.validators[route], v)
}

// Dispatch handles one request envelope and returns the response envelope.
func (r *Router) Dispatch(req Envelope) Envelope {
	r.mu.RLock()
	h, ok := r.handlers[routeVerb{req.Route, req.Verb}]
	r.mu.RUnlock()
	if !ok {
		return Envelope{Route: req.Route, Verb: req.Verb, Params: req.Params, Error: fmt.Sprintf("no handler for %s %s", req.Verb, req.Route)}
	}
	resp, err := h(req)
	out := Envelope{Route: req.Route, Verb: req.Verb, Params: req.Params, Response: resp}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// Subscribe registers cb to receive every validated broadcast.
func (r *Router) Subscribe(cb func(Envelope)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, cb)
}

// Broadcast validates action against the route's hooks, then — if none
// reject it — fans it out to subscribers.
func (r *Router) Broadcast(route string, action Verb, data json.RawMessage) error {
	env := Envelope{Route: route, Verb: action, Data: data}

	r.mu.RLock()
	validators := append([]ValidateBroadcast(nil), r.validators[route]...)
	subs := append([]func(Envelope){}, r.subs...)
	r.mu.RUnlock()

	for _, v := range validators {
		if err := v(env); err != nil {
			return fmt.Errorf("broadcast rejected for %s: %w", route, err)
		}
	}
	for _, sub := range subs {
		sub(env)
	}
	return nil
}
