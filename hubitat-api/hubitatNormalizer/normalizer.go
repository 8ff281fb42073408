package hubitatNormalizer

import (
	"errors"
	"sync"

	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatStructs"
)

var (
	errInvalidJSON  = errors.New("invalid JSON")
	errNotObject    = errors.New("not a JSON object")
	errTrailingData = errors.New("trailing data after JSON object")
)

const unknownName = "unknown"

// Normalizer turns raw hub tiles into flat attribute maps. It holds no
// mutable state and is safe for concurrent use.
type Normalizer struct {
	cfg      Config
	denylist map[string]struct{}
}

func New(cfg Config) *Normalizer {
	deny := make(map[string]struct{}, len(cfg.Denylist))
	for _, k := range cfg.Denylist {
		deny[k] = struct{}{}
	}
	return &Normalizer{cfg: cfg, denylist: deny}
}

// Classify decides which translation a record gets. Shape signals are checked
// together with the declared type in the order audio, music, weather, so a
// tile declared as music but carrying audioTrackData is treated as audio.
func Classify(record hubitatStructs.RawDeviceRecord) hubitatStructs.Kind {
	switch {
	case record.Type == "audio" || truthy(record.Value, "audioTrackData"):
		return hubitatStructs.KindAudio
	case record.Type == "music" || truthy(record.Value, "trackData"):
		return hubitatStructs.KindMusic
	case record.Type == "weather":
		return hubitatStructs.KindWeather
	}
	return hubitatStructs.KindGeneric
}

// Normalize never fails. Anomalies in nested payloads are reported in the
// Warnings of the returned device. The record is not modified.
func (n *Normalizer) Normalize(record hubitatStructs.RawDeviceRecord) hubitatStructs.NormalizedDevice {
	class := Classify(record)

	var (
		value    map[string]any
		warnings []hubitatStructs.Warning
	)
	switch class {
	case hubitatStructs.KindAudio:
		value, warnings = n.translateAudio(record.Value, "audioTrackData", n.cfg.AudioRenameMap)
	case hubitatStructs.KindMusic:
		value, warnings = n.translateMusic(record.Value)
	case hubitatStructs.KindWeather:
		value, warnings = n.translateWeather(record.Value, record.Name)
	default:
		value = flattenObjects(record.Value)
	}

	attrs := make(map[string]string, len(value))
	for k, v := range value {
		if _, denied := n.denylist[k]; denied {
			continue
		}
		if s, ok := stringify(v); ok {
			attrs[k] = s
		}
	}

	name := record.Name
	if name == "" {
		name = unknownName
	}
	return hubitatStructs.NormalizedDevice{
		HubId:      record.HubId,
		DeviceId:   string(record.Id),
		Name:       name,
		Kind:       record.Type,
		Class:      class,
		Attributes: attrs,
		Warnings:   warnings,
	}
}

// NormalizeAll normalizes the catalog on up to workers goroutines and keys the
// result by device id. When ids repeat the later record wins.
func (n *Normalizer) NormalizeAll(records []hubitatStructs.RawDeviceRecord, workers int) map[string]hubitatStructs.NormalizedDevice {
	if workers < 1 {
		workers = 1
	}
	if workers > len(records) {
		workers = len(records)
	}

	results := make([]hubitatStructs.NormalizedDevice, len(records))
	jobs := make(chan int, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = n.Normalize(records[idx])
			}
		}()
	}
	for i := range records {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	devices := make(map[string]hubitatStructs.NormalizedDevice, len(results))
	for _, d := range results {
		devices[d.DeviceId] = d
	}
	return devices
}
