package domain

// ChangeAction is the kind of change announced by a push notification.
type ChangeAction string

const (
	ChangeCreated ChangeAction = "created"
	ChangeUpdated ChangeAction = "updated"
	ChangeDeleted ChangeAction = "deleted"
)

// EntityEvent is the only entity kind the engine consumes from the push
// channel; notifications about other kinds are ignored.
const EntityEvent = "event"

// Notification is a pushed change message. Delivery is at-least-once and
// unordered across identities; per identity no ordering is guaranteed either,
// so consumers must apply notifications idempotently. Event may be a partial
// payload for created/updated; for deleted only Event.ID is meaningful.
type Notification struct {
	EntityKind string
	Action     ChangeAction
	Event      *Event
}
