package event

// Type is the kind of a key event
type Type int

const (
	Press   Type = iota // key went down
	Release             // key went up
	Hold                // repeated while the key stays down
)
