package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSONStringMap and JSONStringSlice are stored as JSON columns, they
// implement driver.Valuer and sql.Scanner for the gorm backends.

type JSONStringMap map[string]string

func (m JSONStringMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	ba, err := json.Marshal(map[string]string(m))
	return string(ba), err
}

func (m *JSONStringMap) Scan(val interface{}) error {
	var ba []byte
	switch v := val.(type) {
	case []byte:
		ba = v
	case string:
		ba = []byte(v)
	default:
		return errors.New(fmt.Sprint("failed to unmarshal JSON value:", val))
	}
	t := map[string]string{}
	err := json.Unmarshal(ba, &t)
	*m = JSONStringMap(t)
	return err
}

func (m JSONStringMap) GormDataType() string {
	return "jsonstringmap"
}

func (JSONStringMap) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "sqlite", "mysql":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}

// JSONStringSlice keeps insertion order, which is the listing order for
// friend and participant sets.
type JSONStringSlice []string

func (s JSONStringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	ba, err := json.Marshal([]string(s))
	return string(ba), err
}

func (s *JSONStringSlice) Scan(val interface{}) error {
	var ba []byte
	switch v := val.(type) {
	case []byte:
		ba = v
	case string:
		ba = []byte(v)
	default:
		return errors.New(fmt.Sprint("failed to unmarshal JSON value:", val))
	}
	t := []string{}
	err := json.Unmarshal(ba, &t)
	*s = JSONStringSlice(t)
	return err
}

func (s JSONStringSlice) GormDataType() string {
	return "jsonstringslice"
}

func (JSONStringSlice) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "sqlite", "mysql":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}

func (s JSONStringSlice) Contains(v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

// Add appends v unless already present.
func (s *JSONStringSlice) Add(v string) {
	if s.Contains(v) {
		return
	}
	*s = append(*s, v)
}

// Remove deletes v preserving order, idempotent.
func (s *JSONStringSlice) Remove(v string) {
	for i, e := range *s {
		if e == v {
			*s = append((*s)[:i], (*s)[i+1:]...)
			return
		}
	}
}
