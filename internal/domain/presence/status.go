package presence

// StatusKind distinguishes transient status messages
type StatusKind string

const (
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// StatusMessage is transient feedback for the add-friend flow and other
// non-critical friend operations. It expires on its own.
type StatusMessage struct {
	Kind StatusKind `json:"kind"`
	Text string     `json:"text"`
}
