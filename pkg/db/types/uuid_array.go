// Package dbtypes holds column types shared by the gorm models.
package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// UUIDArray is an ordered uuid[] column. It is written as a Postgres array
// literal, which SQLite stores verbatim as TEXT, so both dialects round-trip.
type UUIDArray []uuid.UUID

// Value never returns NULL; an empty list is "{}".
func (a UUIDArray) Value() (driver.Value, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, id := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(id.String())
	}
	b.WriteByte('}')
	return b.String(), nil
}

func (a *UUIDArray) Scan(src any) error {
	var literal string
	switch v := src.(type) {
	case nil:
		*a = UUIDArray{}
		return nil
	case string:
		literal = v
	case []byte:
		literal = string(v)
	default:
		return fmt.Errorf("dbtypes.UUIDArray: cannot scan %T", src)
	}

	literal = strings.TrimSpace(literal)
	if !strings.HasPrefix(literal, "{") || !strings.HasSuffix(literal, "}") {
		return fmt.Errorf("dbtypes.UUIDArray: %q is not an array literal", literal)
	}
	fields := strings.FieldsFunc(literal[1:len(literal)-1], func(r rune) bool { return r == ',' })
	out := make(UUIDArray, 0, len(fields))
	for _, field := range fields {
		field = strings.Trim(strings.TrimSpace(field), `"`)
		if strings.EqualFold(field, "NULL") {
			return fmt.Errorf("dbtypes.UUIDArray: NULL element")
		}
		id, err := uuid.Parse(field)
		if err != nil {
			return fmt.Errorf("dbtypes.UUIDArray: element %q: %w", field, err)
		}
		out = append(out, id)
	}
	*a = out
	return nil
}

// Contains reports whether id appears in the list.
func (a UUIDArray) Contains(id uuid.UUID) bool {
	for _, v := range a {
		if v == id {
			return true
		}
	}
	return false
}
