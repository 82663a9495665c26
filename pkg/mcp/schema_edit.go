package mcp

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// sjsonDelete removes the value at path, tolerating a path that doesn't
// exist (sjson.Delete is already a no-op in that case).
func sjsonDelete(data []byte, path string) ([]byte, error) {
	edited, err := sjson.DeleteBytes(data, path)
	if err != nil {
		return nil, err
	}
	return edited, nil
}

// sjsonDeleteFromArray removes a single string value from the array at
// path, leaving the rest of the array (and its order) intact. A missing
// path, or a value not present in the array, is a no-op.
func sjsonDeleteFromArray(data []byte, path, value string) ([]byte, error) {
	arr := gjson.GetBytes(data, path)
	if !arr.Exists() || !arr.IsArray() {
		return data, nil
	}

	var kept []string
	found := false
	for _, v := range arr.Array() {
		if v.String() == value {
			found = true
			continue
		}
		kept = append(kept, v.String())
	}
	if !found {
		return data, nil
	}
	if len(kept) == 0 {
		return sjson.DeleteBytes(data, path)
	}
	return sjson.SetBytes(data, path, kept)
}
