package hubitatNormalizer

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Config holds the static tables the normalizer works with. A zero value
// field disables the corresponding translation step.
type Config struct {
	// Denylist keys are removed from every normalized attribute map.
	Denylist []string
	// AudioRenameMap renames audioTrackData fields. An empty target discards the field.
	AudioRenameMap map[string]string
	// MusicRenameMap renames the top level fields of music tiles.
	MusicRenameMap map[string]string
	// TrackDataRenameMap renames the trackData blob merged on top of music tiles.
	TrackDataRenameMap map[string]string
	// IconLookup maps weather icon codes to icon names.
	IconLookup map[string]string
}

var defaultDenylist = []string{
	"sensor", "actuator", "DeviceWatch-DeviceStatus", "deviceWatch-DeviceStatus", "DeviceWatch-Enroll",
	"checkInterval", "healthStatus", "devTypeVer", "dayPowerAvg", "apiStatus",
	"yearCost", "yearUsage", "monthUsage", "monthEst", "weekCost", "todayUsage",
	"groupPrimaryDeviceId", "groupId", "presets",
	"maxCodeLength", "maxCodes", "readingUpdated", "maxEnergyReading", "monthCost",
	"maxPowerReading", "minPowerReading", "weekUsage", "minEnergyReading",
	"codeReport", "scanCodes", "verticalAccuracy", "horizontalAccuracyMetric",
	"distanceMetric", "closestPlaceDistanceMetric",
	"closestPlaceDistance", "codeChanged", "codeLength", "lockCodes", "horizontalAccuracy",
	"verticalAccuracyMetric", "indicatorStatus", "todayCost", "previousPlace", "closestPlace",
	"minCodeLength", "arrivingAtPlace", "lastUpdatedDt", "custom.disabledComponents",
	"disabledCapabilities", "enabledCapabilities", "supportedCapabilities",
	"supportedPlaybackCommands", "supportedTrackControlCommands", "supportedButtonValues",
	"supportedThermostatModes", "supportedThermostatFanModes",
	"dmv", "di", "pi", "mnml", "mnmn", "mnpv", "mnsl", "icv", "washerSpinLevel", "mnmo",
	"mnos", "mnhw", "mnfv", "supportedCourses", "washerCycle", "cycle",
}

var defaultAudioRenameMap = map[string]string{
	"title":       "trackDescription",
	"artist":      "currentArtist",
	"album":       "currentAlbum",
	"albumArtUrl": "trackImage",
	"mediaSource": "mediaSource",
}

var defaultMusicRenameMap = map[string]string{
	"artist":        "currentArtist",
	"album":         "currentAlbum",
	"status":        "status",
	"trackMetaData": "",
	"metaData":      "",
	"trackNumber":   "trackNumber",
	"music":         "",
	"trackUri":      "",
	"uri":           "",
	"transportUri":  "",
	"enqueuedUri":   "",
	"audioSource":   "mediaSource",
}

var defaultTrackDataRenameMap = map[string]string{
	"name":          "trackDescription",
	"artist":        "currentArtist",
	"album":         "currentAlbum",
	"status":        "status",
	"trackMetaData": "trackImage",
	"trackImage":    "trackImage",
	"metaData":      "",
	"trackNumber":   "",
	"music":         "",
	"trackUri":      "",
	"uri":           "",
	"transportUri":  "",
	"enqueuedUri":   "",
	"audioSource":   "mediaSource",
	"trackData":     "trackData",
}

// condition words and AccuWeather icon numbers
var defaultIconLookup = map[string]string{
	"sunny":           "sunny",
	"clear":           "clear",
	"mostlysunny":     "mostlysunny",
	"partlysunny":     "partlysunny",
	"partlycloudy":    "partlycloudy",
	"mostlycloudy":    "mostlycloudy",
	"cloudy":          "cloudy",
	"hazy":            "hazy",
	"fog":             "fog",
	"chancerain":      "chancerain",
	"rain":            "rain",
	"chancetstorms":   "chancetstorms",
	"tstorms":         "tstorms",
	"chanceflurries":  "chanceflurries",
	"flurries":        "flurries",
	"chancesnow":      "chancesnow",
	"snow":            "snow",
	"chancesleet":     "chancesleet",
	"sleet":           "sleet",
	"nt_clear":        "clear",
	"nt_partlycloudy": "partlycloudy",
	"nt_mostlycloudy": "mostlycloudy",
	"nt_cloudy":       "cloudy",
	"nt_rain":         "rain",
	"nt_snow":         "snow",
	"na":              "na",
	"1":               "sunny",
	"2":               "mostlysunny",
	"3":               "partlysunny",
	"4":               "partlysunny",
	"5":               "hazy",
	"6":               "mostlycloudy",
	"7":               "cloudy",
	"8":               "cloudy",
	"11":              "fog",
	"12":              "rain",
	"13":              "chancerain",
	"14":              "chancerain",
	"15":              "tstorms",
	"16":              "chancetstorms",
	"17":              "chancetstorms",
	"18":              "rain",
	"19":              "flurries",
	"20":              "chanceflurries",
	"21":              "chanceflurries",
	"22":              "snow",
	"23":              "chancesnow",
	"24":              "sleet",
	"25":              "sleet",
	"26":              "sleet",
	"29":              "sleet",
	"30":              "sunny",
	"31":              "clear",
	"32":              "cloudy",
	"33":              "clear",
	"34":              "clear",
	"35":              "partlycloudy",
	"36":              "partlycloudy",
	"37":              "hazy",
	"38":              "mostlycloudy",
	"39":              "chancerain",
	"40":              "chancerain",
	"41":              "chancetstorms",
	"42":              "chancetstorms",
	"43":              "chanceflurries",
	"44":              "chancesnow",
}

// DefaultConfig returns copies of the built-in tables, safe to modify.
func DefaultConfig() Config {
	return Config{
		Denylist:           slices.Clone(defaultDenylist),
		AudioRenameMap:     maps.Clone(defaultAudioRenameMap),
		MusicRenameMap:     maps.Clone(defaultMusicRenameMap),
		TrackDataRenameMap: maps.Clone(defaultTrackDataRenameMap),
		IconLookup:         maps.Clone(defaultIconLookup),
	}
}
