package midi

// PortEvent is emitted when an output port appears or disappears
type PortEvent struct {
	Type PortEventType
	Name string
}

type PortEventType int

const (
	PortAdded PortEventType = iota
	PortRemoved
)

func (t PortEventType) String() string {
	switch t {
	case PortAdded:
		return "added"
	case PortRemoved:
		return "removed"
	}
	return "unknown"
}
