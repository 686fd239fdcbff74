package event

type Type string

const (
	TypeUserCreated       Type = "user.created"
	TypeUserUpdated       Type = "user.updated"
	TypeUserDeleted       Type = "user.deleted"
	TypeUserStatusChanged Type = "user.status_changed"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Subject   string `json:"subject"` // id of the directory record the event is about
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
