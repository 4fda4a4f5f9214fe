package models

import (
	"database/sql/driver"
	"fmt"
)

// JSONDocument is a raw JSON column. Postgres returns jsonb as bytes while
// sqlite hands text columns back as strings, so Scan accepts both.
type JSONDocument []byte

func (d JSONDocument) Value() (driver.Value, error) {
	if len(d) == 0 {
		return nil, nil
	}
	return string(d), nil
}

func (d *JSONDocument) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = nil
	case []byte:
		*d = append(JSONDocument(nil), v...)
	case string:
		*d = JSONDocument(v)
	default:
		return fmt.Errorf("json document: unsupported scan type %T", src)
	}
	return nil
}
