// Package model 包含了应用的数据模型定义。
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONMap 是存储在 JSON 列中的自由结构对象（如 avatar_config、context）。
type JSONMap map[string]interface{}

// Value 实现 driver.Valuer，序列化为 JSON 写库。
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan 实现 sql.Scanner，从 JSON 列读出。
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.New("unsupported type for JSONMap")
		}
		b = []byte(s)
	}
	return json.Unmarshal(b, m)
}

// StringList 是存储在 JSON 列中的字符串数组（如 allergen_info、tags）。
type StringList []string

// Value 实现 driver.Valuer。
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan 实现 sql.Scanner。
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.New("unsupported type for StringList")
		}
		b = []byte(s)
	}
	return json.Unmarshal(b, l)
}
