package dynfield

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFieldAlreadyExists = errors.New("field already exists")
	ErrFieldDoesNotExist  = errors.New("field does not exist")
	ErrFieldTypeMismatch  = errors.New("field type mismatch")
	ErrKeyEncoding        = errors.New("cannot encode field key")

	ErrTableNotEmpty = errors.New("table not empty")
	ErrBagNotEmpty   = errors.New("bag not empty")
	ErrReadOnlyTx    = errors.New("tx not writable")
)

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

// FieldError describes a failed field operation. Err is one of the ErrField*
// sentinels, ErrKeyEncoding, or an underlying storage/decoding error.
type FieldError struct {
	Op        string
	Parent    Address
	FieldID   Address
	KeyType   TypeTag
	ValueType TypeTag
	Msg       string
	Err       error
}

func fieldErrf(op string, parent, id Address, keyType, valueType TypeTag, err error, format string, args ...any) error {
	var msg string
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return &FieldError{op, parent, id, keyType, valueType, msg, err}
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func (e *FieldError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Op)
	buf.WriteByte(' ')
	buf.WriteString(e.Parent.Short())
	if !e.FieldID.IsZero() {
		buf.WriteByte('/')
		buf.WriteString(e.FieldID.Short())
	}
	if e.KeyType != "" {
		buf.WriteString(" [")
		buf.WriteString(string(e.KeyType))
		if e.ValueType != "" {
			buf.WriteString(" => ")
			buf.WriteString(string(e.ValueType))
		}
		buf.WriteByte(']')
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
