package progress

import "context"

// Sink consumes batches of progress events. Implementations must honor ctx
// deadlines and tolerate repeated calls.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. Hub satisfies it, so fetchers stay
// agnostic about buffering and sinks.
type Emitter interface {
	Emit(evt Event)
}

// EmitterFunc adapts a plain function to the Emitter interface.
type EmitterFunc func(evt Event)

// Emit calls f(evt).
func (f EmitterFunc) Emit(evt Event) {
	f(evt)
}

// Nop discards every event.
var Nop Emitter = EmitterFunc(func(Event) {})
