package dashboard

import (
	"reflect"
	"strconv"
	"strings"
)

// ResolvePath looks a dotted path up in decoded data. Segments are map keys or slice
// indexes, written either as "rows.0.valor" or "rows[0].valor". Negative indexes count
// from the end. An empty path returns data itself.
func ResolvePath(data any, path string) (any, bool) {
	segments, ok := splitPath(path)
	if !ok {
		return nil, false
	}
	cur := data
	for _, seg := range segments {
		if cur, ok = step(cur, seg); !ok {
			return nil, false
		}
	}
	return cur, true
}

func splitPath(path string) ([]string, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, true
	}
	var out []string
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, false
		}
		for part != "" {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				out = append(out, part)
				break
			}
			if open > 0 {
				out = append(out, part[:open])
			}
			end := strings.IndexByte(part[open:], ']')
			if end < 0 {
				return nil, false
			}
			out = append(out, part[open+1:open+end])
			part = part[open+end+1:]
		}
	}
	return out, true
}

func step(cur any, seg string) (any, bool) {
	switch x := cur.(type) {
	case nil:
		return nil, false
	case map[string]any:
		v, ok := x[seg]
		return v, ok
	case []any:
		i, ok := index(seg, len(x))
		if !ok {
			return nil, false
		}
		return x[i], true
	}

	v := reflect.ValueOf(cur)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		e := v.MapIndex(reflect.ValueOf(seg).Convert(v.Type().Key()))
		if !e.IsValid() {
			return nil, false
		}
		return e.Interface(), true
	case reflect.Slice, reflect.Array:
		i, ok := index(seg, v.Len())
		if !ok {
			return nil, false
		}
		return v.Index(i).Interface(), true
	}
	return nil, false
}

func index(seg string, n int) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil {
		return 0, false
	}
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, false
	}
	return i, true
}
