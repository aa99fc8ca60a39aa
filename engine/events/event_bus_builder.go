package events

// EventBusBuilderOption is a functional option applied to an EventBus during construction via NewEventBus.
type EventBusBuilderOption func(*eventBus)

// WithLabel sets the label attached to the bus's log records.
//
// Parameters:
//   - label: the bus label
//
// Returns:
//   - EventBusBuilderOption: a function that applies the label option to a bus
func WithLabel(label string) EventBusBuilderOption {
	return func(b *eventBus) {
		b.label = label
	}
}

// WithPanicRecovery controls whether a panicking callback is recovered and logged
// (the default) or allowed to unwind into the caller of Trigger.
//
// Parameters:
//   - enabled: true to recover callback panics
//
// Returns:
//   - EventBusBuilderOption: a function that applies the recovery option to a bus
func WithPanicRecovery(enabled bool) EventBusBuilderOption {
	return func(b *eventBus) {
		b.recoverPanics = enabled
	}
}
