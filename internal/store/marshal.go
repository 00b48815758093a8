package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/timelock/internal/ir"
)

// marshalObject converts an IRObject to canonical JSON TEXT for storage.
func marshalObject(field string, obj ir.IRObject) (string, error) {
	if obj == nil {
		obj = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", field, err)
	}
	return string(data), nil
}

// unmarshalObject parses canonical JSON TEXT. IRObject.UnmarshalJSON keeps
// integers exact above 2^53.
func unmarshalObject(field, data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", field, err)
	}
	return obj, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
