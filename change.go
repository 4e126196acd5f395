package dynfield

import "fmt"

type (
	// Change describes one record written by a field operation.
	Change struct {
		Op        Op
		Kind      RecordKind
		Parent    Address
		ID        Address
		KeyType   TypeTag
		ValueType TypeTag
	}

	Op int
)

const (
	OpNone   Op = 0
	OpAdd    Op = 1
	OpMutate Op = 2
	OpRemove Op = 3
)

func changeOf(op Op, rec *Record) *Change {
	return &Change{
		Op:        op,
		Kind:      rec.Kind,
		Parent:    rec.Parent,
		ID:        rec.ID,
		KeyType:   rec.KeyType,
		ValueType: rec.ValueType,
	}
}

func (chg *Change) String() string {
	return fmt.Sprintf("%s %s %s/%s [%s => %s]", chg.Op, chg.Kind, chg.Parent.Short(), chg.ID.Short(), chg.KeyType, chg.ValueType)
}

func (v Op) String() string {
	switch v {
	case OpNone:
		return "none"
	case OpAdd:
		return "add"
	case OpMutate:
		return "mutate"
	case OpRemove:
		return "remove"
	default:
		return fmt.Sprintf("invalid op %d", int(v))
	}
}
