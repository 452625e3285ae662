package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringSlice is a custom type for storing string arrays in JSON
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	raw, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, s)
}

// JSON is a custom type for storing arbitrary JSON data
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	raw, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, j)
}

// jsonBytes accepts both drivers that return TEXT as string and those returning []byte
func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported JSON column type %T", value)
	}
}
