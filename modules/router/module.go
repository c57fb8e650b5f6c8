package router

import (
	"context"
	"log"
	"log/slog"

	"github.com/go-monolith/mono"

	"github.com/example/social-realtime-demo/events"
	"github.com/example/social-realtime-demo/modules/registry"
)

// Module wires the router to the event bus.
type Module struct {
	router   *Router
	eventBus mono.EventBus
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.EventBusAwareModule = (*Module)(nil)
var _ mono.EventEmitterModule = (*Module)(nil)

// NewModule creates the router module.
func NewModule(reg *registry.Registry, store Store) *Module {
	return &Module{
		router: New(reg, store),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "router"
}

// Router returns the event router for the websocket server to use.
func (m *Module) Router() *Router {
	return m.router
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
	m.router.SetEmitter(&busEmitter{bus: bus})
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageAddedV1.ToBase(),
		events.MessageDeletedV1.ToBase(),
		events.MessageEditedV1.ToBase(),
		events.MessageForwardedV1.ToBase(),
		events.ChatProcessV1.ToBase(),
	}
}

// Start is a no-op; the router is passive until frames arrive.
func (m *Module) Start(_ context.Context) error {
	log.Println("[router] Module started")
	return nil
}

// Stop is a no-op.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[router] Module stopped")
	return nil
}

// busEmitter mirrors routed events onto the bus. Publish failures are
// logged and dropped; the socket broadcast has already happened.
type busEmitter struct {
	bus mono.EventBus
}

func (e *busEmitter) MessageAdded(event events.MessageAddedEvent) {
	if err := events.MessageAddedV1.Publish(e.bus, event, nil); err != nil {
		slog.Warn("Failed to publish MessageAdded event", "error", err)
	}
}

func (e *busEmitter) MessageDeleted(event events.MessageDeletedEvent) {
	if err := events.MessageDeletedV1.Publish(e.bus, event, nil); err != nil {
		slog.Warn("Failed to publish MessageDeleted event", "error", err)
	}
}

func (e *busEmitter) MessageEdited(event events.MessageEditedEvent) {
	if err := events.MessageEditedV1.Publish(e.bus, event, nil); err != nil {
		slog.Warn("Failed to publish MessageEdited event", "error", err)
	}
}

func (e *busEmitter) MessageForwarded(event events.MessageForwardedEvent) {
	if err := events.MessageForwardedV1.Publish(e.bus, event, nil); err != nil {
		slog.Warn("Failed to publish MessageForwarded event", "error", err)
	}
}

func (e *busEmitter) ChatProcessChanged(event events.ChatProcessEvent) {
	if err := events.ChatProcessV1.Publish(e.bus, event, nil); err != nil {
		slog.Warn("Failed to publish ChatProcessChanged event", "error", err)
	}
}
