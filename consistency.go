package qtrc

import "fmt"

// Consistency is a query consistency level, captured as session metadata when
// request code provides it. The canonical string forms follow the usual
// database conventions.
type Consistency uint8

const (
	ConsistencyAny Consistency = iota
	ConsistencyOne
	ConsistencyTwo
	ConsistencyThree
	ConsistencyQuorum
	ConsistencyAll
	ConsistencyLocalQuorum
	ConsistencyEachQuorum
	ConsistencySerial
	ConsistencyLocalSerial
	ConsistencyLocalOne
)

var consistencyNames = [...]string{
	ConsistencyAny:         "ANY",
	ConsistencyOne:         "ONE",
	ConsistencyTwo:         "TWO",
	ConsistencyThree:       "THREE",
	ConsistencyQuorum:      "QUORUM",
	ConsistencyAll:         "ALL",
	ConsistencyLocalQuorum: "LOCAL_QUORUM",
	ConsistencyEachQuorum:  "EACH_QUORUM",
	ConsistencySerial:      "SERIAL",
	ConsistencyLocalSerial: "LOCAL_SERIAL",
	ConsistencyLocalOne:    "LOCAL_ONE",
}

// String returns the canonical form, or a placeholder for values outside the
// defined range.
func (c Consistency) String() string {
	if s, err := c.render(); err == nil {
		return s
	}
	return fmt.Sprintf("UNKNOWN_CONSISTENCY(%d)", uint8(c))
}

// render returns the canonical form, or an error for values outside the
// defined range. Rendering into a session record uses this form so that an
// invalid value poisons the whole parameter map rather than persisting
// garbage.
func (c Consistency) render() (string, error) {
	if int(c) >= len(consistencyNames) {
		return "", fmt.Errorf("invalid consistency level (%d)", uint8(c))
	}
	return consistencyNames[c], nil
}
