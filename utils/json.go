package utils

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// MarshalJSON marshals v into a datatypes.JSON value for JSONB columns.
func MarshalJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
