// Package conv 提供参数 map（YAML/JSON 解析结果、训练参数）的取值与类型转换工具。
package conv

// ToFloat64 将 any 转为 float64。
// 支持 float64、float32、int、int64、int32。
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	default:
		return 0, false
	}
}

// ToInt 将 any 转为 int。
// 支持 int、int64、int32、float64、float32。
func ToInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case int32:
		return int(val), true
	case float64:
		return int(val), true
	case float32:
		return int(val), true
	default:
		return 0, false
	}
}

// ParamFloat 从参数 map 按 key 取 float64，取不到或类型不符时返回 defaultVal。
// YAML/JSON 解析常得到 int 或 float64，此处统一兼容。
func ParamFloat(m map[string]any, key string, defaultVal float64) float64 {
	if m == nil {
		return defaultVal
	}
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	if f, ok := ToFloat64(v); ok {
		return f
	}
	return defaultVal
}

// ParamInt 从参数 map 按 key 取 int，取不到或类型不符时返回 defaultVal。
func ParamInt(m map[string]any, key string, defaultVal int) int {
	if m == nil {
		return defaultVal
	}
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	if i, ok := ToInt(v); ok {
		return i
	}
	return defaultVal
}

// ParamBool 从参数 map 按 key 取 bool，取不到或类型不符时返回 defaultVal。
func ParamBool(m map[string]any, key string, defaultVal bool) bool {
	if m == nil {
		return defaultVal
	}
	if b, ok := m[key].(bool); ok {
		return b
	}
	return defaultVal
}

// ParamString 从参数 map 按 key 取 string，取不到或类型不符时返回 defaultVal。
func ParamString(m map[string]any, key string, defaultVal string) string {
	if m == nil {
		return defaultVal
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return defaultVal
}
