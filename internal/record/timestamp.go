package record

import (
	"encoding/json"
	"fmt"
)

// Timestamp is an optional epoch-milliseconds value as it appears in Libby
// exports. The zero value means "absent": highlight, bookmark and circulation
// entries are not guaranteed to carry one.
//
// Absent timestamps compare as the lowest possible value (SortValue returns 0),
// but remain distinguishable from a literal 0 for deduplication purposes.
type Timestamp struct {
	Millis int64
	Valid  bool
}

// Millis wraps a known epoch-milliseconds value.
func Millis(ms int64) Timestamp {
	return Timestamp{Millis: ms, Valid: true}
}

// SortValue returns the value used for ordering. Absent timestamps sort
// lowest, matching the archive's historical sort behavior.
func (t Timestamp) SortValue() int64 {
	if !t.Valid {
		return 0
	}
	return t.Millis
}

// UnmarshalJSON accepts integer or float epoch values; null leaves the
// timestamp absent. Some early exports wrote fractional milliseconds, which
// are truncated.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = Timestamp{}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("timestamp must be a number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*t = Timestamp{Millis: i, Valid: true}
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("timestamp %q is not numeric: %w", n, err)
	}
	*t = Timestamp{Millis: int64(f), Valid: true}
	return nil
}

// MarshalJSON emits the integer value, or null when absent.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Millis)
}
