package hubitatSink

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatStructs"
)

const measurementPrefix = "hubitat_"

// RecordWriter is the part of influxdb2's api.WriteAPIBlocking the sink uses.
type RecordWriter interface {
	WriteRecord(ctx context.Context, line ...string) error
}

var (
	measurementEscaper = strings.NewReplacer(",", `\,`, " ", `\ `)
	tagEscaper         = strings.NewReplacer(",", `\,`, "=", `\=`, " ", `\ `)
)

// InfluxSink writes every numeric attribute of a device as its own
// measurement, tagged with device id, name and kind.
type InfluxSink struct {
	writer RecordWriter
	client influxdb2.Client
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewInfluxSink(host, token, org, bucket string, logger *zap.SugaredLogger) *InfluxSink {
	client := influxdb2.NewClient(host, token)
	s := NewInfluxSinkWithWriter(client.WriteAPIBlocking(org, bucket), logger)
	s.client = client
	return s
}

func NewInfluxSinkWithWriter(writer RecordWriter, logger *zap.SugaredLogger) *InfluxSink {
	return &InfluxSink{writer: writer, logger: logger, now: time.Now}
}

func (s *InfluxSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// Lines renders the line protocol records for devices at ts.
func Lines(devices map[string]hubitatStructs.NormalizedDevice, ts time.Time) []string {
	ids := maps.Keys(devices)
	slices.Sort(ids)

	var lines []string
	for _, id := range ids {
		d := devices[id]
		tags := fmt.Sprintf("deviceId=%s,name=%s,kind=%s",
			escapeTag(d.DeviceId), escapeTag(d.Name), escapeTag(d.Kind))

		attrs := maps.Keys(d.Attributes)
		slices.Sort(attrs)
		for _, attr := range attrs {
			f, err := strconv.ParseFloat(d.Attributes[attr], 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s,%s value=%s %d",
				measurementEscaper.Replace(measurementPrefix+attr), tags,
				strconv.FormatFloat(f, 'f', -1, 64), ts.UTC().UnixNano()))
		}
	}
	return lines
}

// tag values may not be empty in line protocol
func escapeTag(s string) string {
	if s == "" {
		return "none"
	}
	return tagEscaper.Replace(s)
}

func (s *InfluxSink) Write(ctx context.Context, devices map[string]hubitatStructs.NormalizedDevice) error {
	lines := Lines(devices, s.now())
	if len(lines) == 0 {
		return nil
	}
	if err := s.writer.WriteRecord(ctx, lines...); err != nil {
		return fmt.Errorf("writing %d records to influxdb: %w", len(lines), err)
	}
	s.logger.Infof("Wrote %d records to influxdb", len(lines))
	return nil
}
