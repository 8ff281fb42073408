package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatNormalizer"
	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatNodes"
	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatStructs"
)

type catalogFetcher interface {
	FetchCatalog(ctx context.Context) ([]hubitatStructs.RawDeviceRecord, error)
}

type deviceWriter interface {
	Write(ctx context.Context, devices map[string]hubitatStructs.NormalizedDevice) error
}

type devicePublisher interface {
	Publish(devices map[string]hubitatStructs.NormalizedDevice) error
}

// bridge runs one fetch, normalize, register and export cycle at a time.
type bridge struct {
	fetcher    catalogFetcher
	normalizer *hubitatNormalizer.Normalizer
	registry   *hubitatNodes.Registry
	influx     deviceWriter
	mqtt       devicePublisher
	metrics    *metrics
	workers    int
	logger     *zap.SugaredLogger
}

// cycle returns the fetch error only. Sink failures are logged and do not
// discard the normalized catalog.
func (b *bridge) cycle(ctx context.Context) (map[string]hubitatStructs.NormalizedDevice, error) {
	records, err := b.fetcher.FetchCatalog(ctx)
	b.metrics.observeFetch(err)
	if err != nil {
		return nil, err
	}

	devices := b.normalizer.NormalizeAll(records, b.workers)
	b.metrics.observeCatalog(devices)
	b.logger.Infof("Obtained %d devices from Hubitat hub", len(devices))
	for id, d := range devices {
		for _, w := range d.Warnings {
			b.logger.Warnf("Device %s (%s): %s", id, d.Name, w)
		}
	}

	if b.registry != nil {
		b.registry.Register(devices)
	}
	if b.influx != nil {
		if err := b.influx.Write(ctx, devices); err != nil {
			b.logger.Error(err)
		}
	}
	if b.mqtt != nil {
		if err := b.mqtt.Publish(devices); err != nil {
			b.logger.Error(err)
		}
	}
	return devices, nil
}
