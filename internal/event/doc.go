// Package event carries backend events to the orchestration core.
//
// The backend emits named, payload-bearing events over a websocket:
//
//   - creation-progress    {target, progress}
//   - duplication-progress {target, progress}
//   - instance-stopped     {name}
//
// Both progress kinds decode into one [ProgressEvent] whose Kind field tags
// the originating channel, so consumers merge them through a single code
// path instead of one listener per channel.
//
// [Stream] dials the backend, decodes [Frame] envelopes and publishes typed
// events on a [Bus]. The bus is synchronous: handlers run on the publishing
// goroutine, in registration order, and a panicking handler is recovered
// and logged.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//	id := bus.Subscribe(event.KindDuplicationProgress, func(e event.Event) {
//	    p := e.(event.ProgressEvent)
//	    fmt.Println(p.Target, p.Progress)
//	})
//	defer bus.Unsubscribe(id)
//
//	go event.NewStream(cfg.Backend.EventsURL, bus, clock, logger).Run(ctx)
package event
