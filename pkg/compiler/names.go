package compiler

import "fmt"

// Packed names spread text over successive records as (high, low) nibble
// pairs: fields (0,1), (2,3), (4,5), (6,7). A pair with a zero high nibble
// ends the name, so every byte of a packed name must be at least 0x10.

const pairsPerRecord = RecordLen / 2

// unpack appends the bytes carried by r to buf. done is true once the
// terminating pair has been seen; the fields after it are ignored.
func unpack(r Record, buf []byte) (out []byte, done bool, err error) {
	for i := 0; i < pairsPerRecord; i++ {
		hi, lo := r.Fields[2*i], r.Fields[2*i+1]
		if hi == 0 {
			return buf, true, nil
		}
		if hi > 0xF || lo > 0xF {
			return buf, false, fmt.Errorf("nibble pair (%d, %d) out of range", hi, lo)
		}
		buf = append(buf, byte(hi<<4|lo))
	}
	return buf, false, nil
}

// EncodeName packs s into records, including the terminating pair.
func EncodeName(s string) ([]Record, error) {
	var records []Record
	var cur Record
	n := 0
	flush := func() {
		records = append(records, cur)
		cur = Record{}
		n = 0
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x10 {
			return nil, fmt.Errorf("byte 0x%02x at offset %d cannot be packed", c, i)
		}
		cur.Fields[2*n] = uint32(c >> 4)
		cur.Fields[2*n+1] = uint32(c & 0xF)
		n++
		if n == pairsPerRecord {
			flush()
		}
	}
	// The terminator is the zero pair at position n of the current record.
	flush()
	return records, nil
}
