package utils

import (
	"bytes"
	"encoding/json"
	"sort"
)

// SortedKVMap marshals as a JSON object with keys in lexical order,
// independent of map iteration. Serializing the same entries always
// yields the same bytes, which is what content addressing needs.
type SortedKVMap[T any] map[string]T

func (sm SortedKVMap[T]) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(sm))
	for k := range sm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valueBytes, err := json.Marshal(sm[k])
		if err != nil {
			return nil, err
		}
		buf.Write(valueBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
