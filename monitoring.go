package dynfield

type Stats struct {
	Fields  int
	Objects int
	Corrupt int

	DataSize  int64
	DataAlloc int64
}

// Stats walks all records. It is meant for diagnostics, not for hot paths.
func (tx *Tx) Stats() Stats {
	if tx.stx == nil {
		return Stats{}
	}
	buck := tx.stx.Bucket(fieldsBucketName)
	bs := buck.Stats()
	result := Stats{
		DataSize:  bs.LeafInuse,
		DataAlloc: bs.TotalAlloc(),
	}

	c := buck.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		rec, err := decodeRecord(addressFromKey(k), v, true)
		if err != nil {
			result.Corrupt++
			continue
		}
		switch rec.Kind {
		case KindField:
			result.Fields++
		case KindObject:
			result.Objects++
		}
	}
	return result
}

func addressFromKey(k []byte) Address {
	var a Address
	copy(a[:], k)
	return a
}
