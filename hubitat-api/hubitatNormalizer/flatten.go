package hubitatNormalizer

import (
	"strconv"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// flattenObjects lifts every structured value into the parent map under
// "<parent>_<child>" keys and drops the structured key. Lifting repeats down
// to the leaves, so {"a":{"b":{"c":1}}} becomes {"a_b_c":1}. Arrays are lifted
// by index. Null values are dropped. A lifted key replaces a scalar of the
// same name.
func flattenObjects(value map[string]any) map[string]any {
	out := make(map[string]any, len(value))
	var nested []string
	for k, v := range value {
		switch {
		case v == nil:
		case isStructured(v):
			nested = append(nested, k)
		default:
			out[k] = v
		}
	}
	slices.Sort(nested)
	for _, k := range nested {
		lift(out, k, value[k])
	}
	return out
}

func lift(out map[string]any, prefix string, v any) {
	switch t := v.(type) {
	case map[string]any:
		keys := maps.Keys(t)
		slices.Sort(keys)
		for _, k := range keys {
			lift(out, prefix+"_"+k, t[k])
		}
	case []any:
		for i, e := range t {
			lift(out, prefix+"_"+strconv.Itoa(i), e)
		}
	case nil:
	default:
		out[prefix] = t
	}
}
