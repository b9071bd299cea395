package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// KeySep joins a parent key and a child identifier.
const KeySep = "/"

// ChildKey returns parent + "/" + id.
func ChildKey(parent, id string) string {
	var b strings.Builder
	b.Grow(len(parent) + len(KeySep) + len(id))
	b.WriteString(parent)
	b.WriteString(KeySep)
	b.WriteString(id)
	return b.String()
}

// FormatID renders an identifier value for use in a child key.
// Integral floats drop the fraction so a decoded JSON 1 keys as "1".
// nil and empty strings are not identifiers.
func FormatID(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case float64:
		return formatFloat(x), true
	case float32:
		return formatFloat(float64(x)), true
	case fmt.Stringer:
		s := x.String()
		return s, s != ""
	default:
		return fmt.Sprint(v), true
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
