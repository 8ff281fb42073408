package hubitatStructs

import (
	"bytes"
	"encoding/json"
	"strings"
)

type HubIdentity struct {
	SiteName string `json:"sitename"`
	HubId    string `json:"hubId"`
}

// RawDeviceRecord is one tile as delivered by the getallthings endpoint.
// Value keeps numbers as json.Number so they survive normalization verbatim.
type RawDeviceRecord struct {
	Type  string         `json:"type"`
	Id    FlexString     `json:"id"`
	Name  string         `json:"name"`
	Value map[string]any `json:"value"`
	HubId string         `json:"-"`
}

// FlexString accepts a JSON string or number.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (r *RawDeviceRecord) UnmarshalJSON(data []byte) error {
	type plain RawDeviceRecord
	var p struct {
		plain
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = RawDeviceRecord(p.plain)
	r.Value = map[string]any{}
	if len(p.Value) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(p.Value))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	if m, ok := v.(map[string]any); ok {
		r.Value = m
	}
	return nil
}

type Kind string

const (
	KindAudio   Kind = "audio"
	KindMusic   Kind = "music"
	KindWeather Kind = "weather"
	KindGeneric Kind = "generic"
)

type WarningKind string

const (
	MalformedPayload WarningKind = "MalformedPayload"
	UnknownIconCode  WarningKind = "UnknownIconCode"
)

// Warning records a soft failure that was absorbed while normalizing a device.
type Warning struct {
	Kind   WarningKind `json:"kind"`
	Key    string      `json:"key"`
	Detail string      `json:"detail,omitempty"`
}

func (w Warning) String() string {
	var sb strings.Builder
	sb.WriteString(string(w.Kind))
	sb.WriteString(" on ")
	sb.WriteString(w.Key)
	if w.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(w.Detail)
	}
	return sb.String()
}

// NormalizedDevice is the flat, controller friendly view of a RawDeviceRecord.
// Kind is the type reported by the hub, Class the translation that was applied.
type NormalizedDevice struct {
	HubId      string            `json:"hubId"`
	DeviceId   string            `json:"deviceId"`
	Name       string            `json:"name"`
	Kind       string            `json:"kind"`
	Class      Kind              `json:"class"`
	Attributes map[string]string `json:"attributes"`
	Warnings   []Warning         `json:"warnings,omitempty"`
}

// Ack is the undecoded answer of the doaction endpoint.
type Ack struct {
	StatusCode int
	Body       []byte
}
