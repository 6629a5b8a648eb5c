// api/dao/helpers.go
package dao

import (
	"encoding/json"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func getString(props map[string]interface{}, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func getInt(props map[string]interface{}, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func getBool(props map[string]interface{}, key string) bool {
	if v, ok := props[key].(bool); ok {
		return v
	}
	return false
}

// getTime reads an RFC3339 timestamp property. Zero time when absent.
func getTime(props map[string]interface{}, key string) time.Time {
	s := getString(props, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func getNullableTime(props map[string]interface{}, key string) *time.Time {
	t := getTime(props, key)
	if t.IsZero() {
		return nil
	}
	return &t
}

// getIntSlice reads an int slice stored as a JSON string property.
func getIntSlice(props map[string]interface{}, key string) []int {
	s := getString(props, key)
	if s == "" {
		return nil
	}
	var out []int
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatNullableTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func nodeFromRecord(record *neo4j.Record) (neo4j.Node, bool) {
	if len(record.Values) == 0 {
		return neo4j.Node{}, false
	}
	node, ok := record.Values[0].(neo4j.Node)
	return node, ok
}
