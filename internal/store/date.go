package store

import (
	"fmt"
	"time"
)

// dateValue scans a DATE column regardless of how the driver surfaces it:
// time.Time (mysql parseTime, sqlite3 typed columns) or raw text.
type dateValue struct {
	t   time.Time
	raw string
}

func (d *dateValue) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		d.t = v
	case []byte:
		d.raw = string(v)
	case string:
		d.raw = v
	case nil:
		d.raw = ""
	default:
		return fmt.Errorf("unsupported date type %T", src)
	}
	return nil
}

// String renders the date as YYYY-MM-DD.
func (d dateValue) String() string {
	if !d.t.IsZero() {
		return d.t.Format("2006-01-02")
	}
	if len(d.raw) >= 10 {
		return d.raw[:10]
	}
	return d.raw
}
