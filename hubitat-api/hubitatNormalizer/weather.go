package hubitatNormalizer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatStructs"
)

const (
	defaultWeatherName = "Weather"
	notAvailableIcon   = "na"
	forecastHours      = 3
)

var simpleIconKeys = []string{"weatherIcon", "forecastIcon"}

// lookupIcon translates an icon code. Numeric codes match with or without
// leading zeros.
func (n *Normalizer) lookupIcon(code any) (string, bool) {
	s, ok := stringify(code)
	if !ok {
		return "", false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if icon, ok := n.cfg.IconLookup[s]; ok {
		return icon, true
	}
	if num, err := strconv.Atoi(s); err == nil {
		icon, ok := n.cfg.IconLookup[strconv.Itoa(num)]
		return icon, ok
	}
	return "", false
}

func (n *Normalizer) notAvailable() string {
	if icon, ok := n.cfg.IconLookup[notAvailableIcon]; ok {
		return icon
	}
	return notAvailableIcon
}

// translateWeather handles both the plain weather tile, where only the icon
// codes are translated, and the AccuWeather tile (recognised by realFeel),
// which is rebuilt with a pre-rendered forecast table.
func (n *Normalizer) translateWeather(value map[string]any, deviceName string) (map[string]any, []hubitatStructs.Warning) {
	var warnings []hubitatStructs.Warning
	unknownIcon := func(key string, code any) {
		s, _ := stringify(code)
		warnings = append(warnings, hubitatStructs.Warning{
			Kind:   hubitatStructs.UnknownIconCode,
			Key:    key,
			Detail: s,
		})
	}

	if !truthy(value, "realFeel") {
		out := shallowCopy(value)
		for _, key := range simpleIconKeys {
			code, ok := value[key]
			if !ok {
				continue
			}
			if icon, ok := n.lookupIcon(code); ok {
				out[key] = icon
			} else {
				delete(out, key)
				unknownIcon(key, code)
			}
		}
		return out, warnings
	}

	out := map[string]any{
		"name":        defaultWeatherName,
		"temperature": value["temperature"],
		"realFeel":    value["realFeel"],
	}
	if truthy(value, "name") {
		out["name"] = value["name"]
	} else if deviceName != "" {
		out["name"] = deviceName
	}
	if code, ok := value["weatherIcon"]; ok {
		if icon, ok := n.lookupIcon(code); ok {
			out["weatherIcon"] = icon
		} else {
			unknownIcon("weatherIcon", code)
		}
	}
	if summary, ok := value["summary"].(string); ok {
		out["summary"] = toBreaks(summary)
	}

	forecast, err := n.renderForecast(value)
	if err != nil {
		warnings = append(warnings, hubitatStructs.Warning{
			Kind:   hubitatStructs.MalformedPayload,
			Key:    "forecast",
			Detail: err.Error(),
		})
	}
	out["forecast"] = forecast
	return out, warnings
}

func toBreaks(s string) string {
	return strings.ReplaceAll(s, "\n", "<br/>")
}

// renderForecast builds the short range forecast table. When the forecast
// blob does not parse, its raw text is returned with line breaks converted
// together with the parse error. Hours missing from the blob end the table.
func (n *Normalizer) renderForecast(value map[string]any) (string, error) {
	var blob string
	switch f := value["forecast"].(type) {
	case nil:
		return "", nil
	case string:
		blob = f
	case map[string]any:
		b, err := json.Marshal(f)
		if err != nil {
			return "", err
		}
		blob = string(b)
	default:
		s, _ := stringify(f)
		return "", fmt.Errorf("unexpected forecast value %q", s)
	}

	if strings.TrimSpace(blob) == "" {
		return "", nil
	}
	if !gjson.Valid(blob) {
		return toBreaks(blob), errInvalidJSON
	}
	forecast := gjson.Parse(blob)
	// A falsy forecast renders nothing. Any other non-object yields the bare header.
	switch {
	case forecast.Type == gjson.Null, forecast.Type == gjson.False,
		forecast.Type == gjson.Number && forecast.Num == 0,
		forecast.Type == gjson.String && forecast.Str == "":
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("<table class='accuweather'>")
	sb.WriteString("<tr><th class='hr'>Time</th><th class='temperature'>Temp</th><th class='precipitation'>Icon</th></tr>")
	for hr := 1; hr <= forecastHours; hr++ {
		key := strconv.Itoa(hr) + "hr"
		hour := forecast.Get(key)
		if !hour.IsObject() {
			break
		}
		icon := n.notAvailable()
		if truthy(value, "icon"+key) {
			if translated, ok := n.lookupIcon(value["icon"+key]); ok {
				icon = translated
			}
		}
		fmt.Fprintf(&sb, "<tr><td class='hr'>%s</td><td class='temperature'>%s</td><td class='weatherIcon'>%s</td></tr>",
			hourLabel(value, hr), hour.Get("temperature").String(), icon)
	}
	sb.WriteString("</table>")
	return sb.String(), nil
}

// hourLabel uses the tile's "time<n>hr" text ("\nMonday\n3 PM" renders as
// "Mon 3 PM") and falls back to "<n> Hr".
func hourLabel(value map[string]any, hr int) string {
	raw, _ := value["time"+strconv.Itoa(hr)+"hr"].(string)
	if raw == "" {
		return strconv.Itoa(hr) + " Hr"
	}
	words := strings.Split(raw, "\n")
	if len(words) >= 3 {
		day := words[1]
		if r := []rune(day); len(r) > 3 {
			day = string(r[:3])
		}
		return day + " " + words[2]
	}
	return strings.Join(strings.Fields(raw), " ")
}
