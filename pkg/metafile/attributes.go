package metafile

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Attributes 把每个字段建模为"可能取值的集合"
// 叶子值 v 出现在路径 k 下，就记录为 a[k][v] = {}；记录的是"出现过"，而不是唯一的值。
// 这种结构可以按任意顺序合并 (CRDT)，结果与合并顺序无关。
type Attributes map[string]Attributes

// Merge 把一个 meta-file 的 JSON 主体合并进来
func (a Attributes) Merge(src map[string]any) {
	for k, v := range src {
		a.mergeValue(k, v)
	}
}

func (a Attributes) mergeValue(k string, v any) {
	dst := a.child(k)
	switch val := v.(type) {
	case nil:
		// 只记录字段存在
	case string:
		dst.child(val)
	case map[string]any:
		dst.Merge(val)
	case []any:
		// 数组当作取值集合
		for _, elem := range val {
			if obj, ok := elem.(map[string]any); ok {
				dst.Merge(obj)
				continue
			}
			if s, ok := scalar(elem); ok {
				dst.child(s)
			}
		}
	default:
		if s, ok := scalar(val); ok {
			dst.child(s)
		}
	}
}

func (a Attributes) child(k string) Attributes {
	c, ok := a[k]
	if !ok || c == nil {
		c = Attributes{}
		a[k] = c
	}
	return c
}

func scalar(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool, float64, int, int64:
		return fmt.Sprint(val), true
	}
	return "", false
}

// Combine 合并另一个 Attributes
func (a Attributes) Combine(other Attributes) {
	for k, sub := range other {
		a.child(k).Combine(sub)
	}
}

// Values 返回字段 k 下出现过的取值 (已排序)
func (a Attributes) Values(k string) []string {
	sub := a[k]
	out := make([]string, 0, len(sub))
	for v := range sub {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Has 判断字段 k 是否出现过取值 v
func (a Attributes) Has(k, v string) bool {
	_, ok := a[k][v]
	return ok
}

// MarshalJSON 保证空集合输出为 {} 而不是 null
func (a Attributes) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]Attributes(a))
}
