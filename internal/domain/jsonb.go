package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringSlice stores an ordered list of strings as a JSONB array.
// Used for URL lists on batches and saga states, where element order
// is significant and must survive a round trip through the database.
type StringSlice []string

// Scan implements the sql.Scanner interface.
func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}

	data, err := jsonbBytes(value)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		*s = StringSlice{}
		return nil
	}

	return json.Unmarshal(data, s)
}

// Value implements the driver.Valuer interface.
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// jsonbBytes converts a scanned database value into raw JSON bytes.
func jsonbBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, errors.New("unsupported type for JSONB column")
	}
}
