package event

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// Backend event names
const (
	KindCreationProgress    = "creation-progress"
	KindDuplicationProgress = "duplication-progress"
	KindInstanceStopped     = "instance-stopped"
)

// ProgressKinds lists every event kind carrying a progress payload
var ProgressKinds = []string{KindCreationProgress, KindDuplicationProgress}

// Event is anything published on the bus
type Event interface {
	EventType() string
}

// ProgressEvent is the shared shape of creation-progress and
// duplication-progress; Kind tags which channel it came from.
type ProgressEvent struct {
	Kind     string  `json:"-"`
	Target   string  `json:"target"`
	Progress float64 `json:"progress"`
}

// EventType implements Event
func (e ProgressEvent) EventType() string { return e.Kind }

// InstanceStoppedEvent reports that the backend observed an instance exit
type InstanceStoppedEvent struct {
	Name string `json:"name"`
}

// EventType implements Event
func (InstanceStoppedEvent) EventType() string { return KindInstanceStopped }

// Frame is the wire envelope of the backend event stream
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Decode turns a wire frame into a typed event
func (f Frame) Decode() (Event, error) {
	switch f.Event {
	case KindCreationProgress, KindDuplicationProgress:
		var ev ProgressEvent
		if err := sonic.Unmarshal(f.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", f.Event, err)
		}
		ev.Kind = f.Event
		return ev, nil
	case KindInstanceStopped:
		var ev InstanceStoppedEvent
		if err := sonic.Unmarshal(f.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", f.Event, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event %q", f.Event)
	}
}
