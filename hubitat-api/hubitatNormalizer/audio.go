package hubitatNormalizer

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatStructs"
)

// translateAudio merges the track blob found under blobKey into a copy of
// value, renaming fields through renames. The blob may be a JSON string or an
// object. A blob that does not parse leaves value untouched.
func (n *Normalizer) translateAudio(value map[string]any, blobKey string, renames map[string]string) (map[string]any, []hubitatStructs.Warning) {
	out := shallowCopy(value)

	var track map[string]any
	switch blob := value[blobKey].(type) {
	case string:
		if blob == "" {
			break
		}
		parsed, err := decodeObject(blob)
		if err != nil {
			return out, []hubitatStructs.Warning{{
				Kind:   hubitatStructs.MalformedPayload,
				Key:    blobKey,
				Detail: err.Error(),
			}}
		}
		track = parsed
	case map[string]any:
		track = blob
	}

	if track != nil {
		delete(out, blobKey)
		renameInto(out, track, renames)
	}

	if img, ok := out["trackImage"].(string); ok {
		out["trackImage"] = extractImageURL(img)
	}
	return out, nil
}

// extractImageURL digs the bare URL out of artwork markup such as
// `<img src=x>http:\/\/host\/a.jpg</img>`. Values that already start with the
// URL are returned unchanged, markup without a usable URL yields "".
func extractImageURL(s string) string {
	if strings.Index(s, "http") <= 0 {
		return s
	}
	start := strings.Index(s, ">http")
	if start < 0 {
		return ""
	}
	start++
	end := strings.Index(s[start+1:], "<")
	if end < 0 {
		return ""
	}
	return strings.ReplaceAll(s[start:start+1+end], `\`, "")
}

// translateMusic renames the top level music fields and then merges any
// trackData blob on top of them.
func (n *Normalizer) translateMusic(value map[string]any) (map[string]any, []hubitatStructs.Warning) {
	out := make(map[string]any, len(value))
	renameInto(out, value, n.cfg.MusicRenameMap)

	if _, ok := out["trackData"]; !ok {
		return out, nil
	}
	return n.translateAudio(out, "trackData", n.cfg.TrackDataRenameMap)
}

// renameInto copies src into dst through renames, in key order so that two
// fields renamed onto the same target resolve the same way every time.
// Renamed fields with an empty value are written as "".
func renameInto(dst, src map[string]any, renames map[string]string) {
	keys := maps.Keys(src)
	slices.Sort(keys)
	for _, k := range keys {
		v := src[k]
		target, mapped := renames[k]
		switch {
		case !mapped:
			dst[k] = v
		case target == "":
		case isFalsy(v):
			dst[target] = ""
		default:
			dst[target] = v
		}
	}
}
