package dynfield

import (
	"fmt"
	"strings"
)

var dumpSep = strings.Repeat("=", 80)

// Dump describes every stored record, one per line. Names and values are
// shown as sizes only; keys are never decoded.
func (tx *Tx) Dump() string {
	var buf strings.Builder
	if tx.stx == nil {
		return ""
	}
	s := tx.Stats()
	fmt.Fprintln(&buf, dumpSep)
	fmt.Fprintf(&buf, "%s (%d fields, %d objects, %d corrupt, data_size = %d, data_alloc = %d)\n", fieldsBucketName, s.Fields, s.Objects, s.Corrupt, s.DataSize, s.DataAlloc)

	c := tx.stx.Bucket(fieldsBucketName).Cursor()
	var pos int
	for k, v := c.First(); k != nil; k, v = c.Next() {
		pos++
		id := addressFromKey(k)
		rec, err := decodeRecord(id, v, false)
		if err != nil {
			fmt.Fprintf(&buf, "%s.%d %s ** ERROR: %v\n", fieldsBucketName, pos, id, err)
			continue
		}
		fmt.Fprintf(&buf, "%s.%d %s %s parent=%s [%s => %s] name=%dB value=%dB\n", fieldsBucketName, pos, rec.Kind, id, rec.Parent, rec.KeyType, rec.ValueType, len(rec.Name), len(rec.Value))
	}
	return buf.String()
}
