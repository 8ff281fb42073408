package main

import (
	"bytes"
	"flag"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatNormalizer"
	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatStructs"
)

var (
	configPath string
	once       bool
)

func initCliFlags() {
	flag.StringVar(&configPath, "configFile", "config.yaml", "Path to the config.yaml File.")
	flag.BoolVar(&once, "once", false, "Fetch the catalog once and print the normalized devices as JSON.")
	flag.Parse()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("hubitat.endpoint", "http://localhost/apps/api/1/")
	v.SetDefault("hubitat.accesstoken", "")
	v.SetDefault("hubitat.insecure", true)
	v.SetDefault("hubitat.timeout", 30)
	v.SetDefault("hubitat.pollinterval", 60)
	v.SetDefault("normalizer.workers", 4)
	v.SetDefault("metrics.port", 9124)
	v.SetDefault("mqtt.clientid", "hubitat-bridge")
	v.SetDefault("mqtt.topicprefix", "hubitat")
	v.SetDefault("mqtt.qos", 1)
}

func initConfig() {
	setDefaults(viper.GetViper())
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.SetEnvPrefix("hubitat")
	viper.AutomaticEnv()
	viper.SetConfigType("yaml")
	cfg, err := os.ReadFile(configPath)
	if err != nil {
		sugar.Info("No configuration file found. Using Default config")
	}
	err = viper.ReadConfig(bytes.NewBuffer(cfg)) // Find and read the config file
	if err != nil {                              // Handle errors reading the config file
		sugar.Errorf("Error while reading config file: %v. Using Default config", err)
	}
	settings := viper.AllSettings()
	if hub, ok := settings["hubitat"].(map[string]any); ok {
		if _, ok := hub["accesstoken"]; ok {
			hub["accesstoken"] = "***"
		}
	}
	sugar.Infof("Configuration from %v", settings)
}

// normalizerConfig starts from the built-in tables. A configured denylist
// replaces the built-in one, configured icons are added to the lookup.
func normalizerConfig(v *viper.Viper) hubitatNormalizer.Config {
	cfg := hubitatNormalizer.DefaultConfig()
	if v.IsSet("normalizer.denylist") {
		cfg.Denylist = v.GetStringSlice("normalizer.denylist")
	}
	for code, icon := range v.GetStringMapString("normalizer.icons") {
		cfg.IconLookup[strings.ToLower(code)] = icon
	}
	mergeRenames(cfg.AudioRenameMap, v.GetStringSlice("normalizer.audiorenames"))
	mergeRenames(cfg.MusicRenameMap, v.GetStringSlice("normalizer.musicrenames"))
	mergeRenames(cfg.TrackDataRenameMap, v.GetStringSlice("normalizer.trackdatarenames"))
	return cfg
}

// mergeRenames applies "source=target" entries. Rename tables are lists
// rather than maps because viper lowercases map keys and field names are
// case sensitive. An empty target discards the field.
func mergeRenames(dst map[string]string, entries []string) {
	for _, entry := range entries {
		from, to, ok := strings.Cut(entry, "=")
		from = strings.TrimSpace(from)
		if !ok || from == "" {
			continue
		}
		dst[from] = strings.TrimSpace(to)
	}
}

// viperIdentityStore publishes the hub identity into the runtime config.
type viperIdentityStore struct {
	v *viper.Viper
}

func (s viperIdentityStore) SetHubIdentity(hub hubitatStructs.HubIdentity) {
	s.v.Set("hubitat.hubname", hub.SiteName)
	s.v.Set("hubitat.hubid", hub.HubId)
}
