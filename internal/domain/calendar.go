package domain

// ContextKind is the owning context of a calendar.
type ContextKind string

const (
	ContextPersonal  ContextKind = "personal"
	ContextBusiness  ContextKind = "business"
	ContextHousehold ContextKind = "household"
)

// Calendar is a server-authoritative calendar the engine reads events from.
// At most one calendar per context is primary; that invariant is enforced by
// the server, the engine only reads the flag.
type Calendar struct {
	ID      string
	Name    string
	Color   string
	Context ContextKind

	IsPrimary   bool
	IsSystem    bool
	IsDeletable bool
}
