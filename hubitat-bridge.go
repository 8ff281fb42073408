package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatClient"
	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatNormalizer"
	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatNodes"
	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatSink"
)

const defaultPollInterval = 60 * time.Second

var sugar *zap.SugaredLogger

func NewLogger(console string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{
		console, "hubitat_bridge.log",
	}
	return cfg.Build()
}

// initLogger keeps stdout free for the catalog dump in -once mode.
func initLogger() {
	console := "stdout"
	if once {
		console = "stderr"
	}
	logger, err := NewLogger(console)
	if err != nil {
		logger = zap.NewExample()
	}
	sugar = logger.Sugar()
}

func main() {
	initCliFlags()
	initLogger()
	defer sugar.Sync() // flushes buffer, if any
	initConfig()

	sugar.Info("Starting Hubitat-Bridge")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		sugar.Info("Catch Keyboard interrupt")
		cancel()
	}()

	sugar.Info("Creating Metrics-Registry")
	// Create a non-global registry.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewBuildInfoCollector())
	reg.MustRegister(collectors.NewGoCollector())
	m := NewMetrics(reg)

	client := hubitatClient.NewHubitatApiClient(
		viper.GetString("hubitat.endpoint"),
		viper.GetString("hubitat.accesstoken"),
		hubitatClient.Options{
			Timeout:  time.Duration(viper.GetInt("hubitat.timeout")) * time.Second,
			Insecure: viper.GetBool("hubitat.insecure"),
			Identity: viperIdentityStore{v: viper.GetViper()},
		},
		sugar,
	)

	b := &bridge{
		fetcher:    client,
		normalizer: hubitatNormalizer.New(normalizerConfig(viper.GetViper())),
		registry:   hubitatNodes.NewRegistry(instrumentedSender{next: client, metrics: m}, sugar),
		metrics:    m,
		workers:    viper.GetInt("normalizer.workers"),
		logger:     sugar,
	}

	if once {
		devices, err := b.cycle(ctx)
		if err != nil {
			sugar.Fatal(err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(devices); err != nil {
			sugar.Fatal(err)
		}
		return
	}

	if host := viper.GetString("influxdb.host"); host != "" {
		sugar.Infof("Writing numeric attributes to influxdb at %s", host)
		influx := hubitatSink.NewInfluxSink(host, viper.GetString("influxdb.token"),
			viper.GetString("influxdb.org"), viper.GetString("influxdb.bucket"), sugar)
		defer influx.Close()
		b.influx = influx
	}
	if broker := viper.GetString("mqtt.broker"); broker != "" {
		sugar.Infof("Publishing devices to mqtt broker %s", broker)
		mqttClient, err := hubitatSink.ConnectMQTT(hubitatSink.MQTTOptions{
			Broker:   broker,
			ClientID: viper.GetString("mqtt.clientid"),
			Username: viper.GetString("mqtt.username"),
			Password: viper.GetString("mqtt.password"),
		})
		if err != nil {
			sugar.Fatal(err)
		}
		defer mqttClient.Disconnect(250)
		prefix, qos := viper.GetString("mqtt.topicprefix"), byte(viper.GetInt("mqtt.qos"))
		b.mqtt = hubitatSink.NewMQTTSink(mqttClient, prefix, qos, sugar)
		commands := hubitatSink.NewMQTTCommands(ctx, b.registry, prefix, qos, sugar)
		if err := commands.Subscribe(mqttClient); err != nil {
			sugar.Fatal(err)
		}
	}

	// Expose metrics and custom registry via an HTTP server
	// using the HandleFor function. "/metrics" is the usual endpoint for that.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: ":" + viper.GetString("metrics.port"), Handler: mux}
	go func() {
		sugar.Infof("Metrics served at: %v", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatal(err)
		}
	}()

	poll(ctx, b, time.Duration(viper.GetInt("hubitat.pollinterval"))*time.Second)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Error(err)
	}
}

// poll runs a cycle right away and then on every tick until ctx is done.
// A failed fetch is logged and retried on the next tick.
func poll(ctx context.Context, b *bridge, interval time.Duration) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	b.logger.Infof("Polling hub every %v", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := b.cycle(ctx); err != nil && ctx.Err() == nil {
			b.logger.Errorf("Fetching device catalog failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
