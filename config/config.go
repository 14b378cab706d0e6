package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"

	defaultDistanceMeters    = 1000.0
	defaultMaxDistanceMeters = 20000.0
	defaultFetchTimeout      = 10 * time.Second
	defaultMetricsPath       = "/metrics"
	defaultGeocoderEndpoint  = "https://nominatim.openstreetmap.org/search"
	defaultGeocoderAgent     = "bikeshare/1.0"
	defaultSessionTTL        = 24 * time.Hour
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	// Stations configures where the station metadata and live inventory come from
	Stations *StationsConfig `json:"stations" yaml:"stations"`

	// Geocoding configures the address lookup service
	Geocoding *GeocodingConfig `json:"geocoding" yaml:"geocoding"`

	// Network configures proximity graph defaults and limits
	Network *NetworkConfig `json:"network" yaml:"network"`

	// Sessions configures the in-memory session store
	Sessions *SessionsConfig `json:"sessions" yaml:"sessions"`

	// Metrics configures the Prometheus endpoint
	Metrics *MetricsConfig `json:"metrics" yaml:"metrics"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// StationsConfig points at the GBFS station_information and station_status documents.
// Each URL is either http(s):// or a blob URL (file://, mem://, gs://, s3://).
type StationsConfig struct {
	InformationURL string        `json:"informationUrl" yaml:"informationUrl"`
	StatusURL      string        `json:"statusUrl" yaml:"statusUrl"`
	Timeout        time.Duration `json:"timeout" yaml:"timeout"`
}

// GeocodingConfig defines the Nominatim-compatible geocoder
type GeocodingConfig struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	UserAgent string `json:"userAgent" yaml:"userAgent"`
	// Appended to every address before lookup, e.g. ", Barcelona"
	CitySuffix string        `json:"citySuffix" yaml:"citySuffix"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
}

// NetworkConfig defines proximity graph distances in meters
type NetworkConfig struct {
	DefaultDistanceMeters float64 `json:"defaultDistanceMeters" yaml:"defaultDistanceMeters"`
	MaxDistanceMeters     float64 `json:"maxDistanceMeters" yaml:"maxDistanceMeters"`
}

// SessionsConfig defines session lifetime
type SessionsConfig struct {
	// Sessions idle for longer than TTL are dropped
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// MetricsConfig defines the Prometheus exposition endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			searchPaths = append(searchPaths, filepath.Join(pwd, path))
		}
	}

	var configFile string
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate

			break
		}
	}

	if configFile == "" {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Environment variables override the file.
	// Example: STATIONS_STATUSURL -> stations.statusUrl
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			return canonicalizeEnvKey(k, existingConfigMap), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	if cfg.Stations == nil {
		cfg.Stations = &StationsConfig{}
	}
	if cfg.Stations.Timeout <= 0 {
		cfg.Stations.Timeout = defaultFetchTimeout
	}

	if cfg.Geocoding == nil {
		cfg.Geocoding = &GeocodingConfig{}
	}
	if cfg.Geocoding.Endpoint == "" {
		cfg.Geocoding.Endpoint = defaultGeocoderEndpoint
	}
	if cfg.Geocoding.UserAgent == "" {
		cfg.Geocoding.UserAgent = defaultGeocoderAgent
	}
	if cfg.Geocoding.Timeout <= 0 {
		cfg.Geocoding.Timeout = defaultFetchTimeout
	}

	if cfg.Network == nil {
		cfg.Network = &NetworkConfig{}
	}
	if cfg.Network.DefaultDistanceMeters <= 0 {
		cfg.Network.DefaultDistanceMeters = defaultDistanceMeters
	}
	if cfg.Network.MaxDistanceMeters <= 0 {
		cfg.Network.MaxDistanceMeters = defaultMaxDistanceMeters
	}

	if cfg.Sessions == nil {
		cfg.Sessions = &SessionsConfig{}
	}
	if cfg.Sessions.TTL <= 0 {
		cfg.Sessions.TTL = defaultSessionTTL
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{Enabled: true}
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}
}

func (cfg *Config) validate() error {
	if cfg.Stations.InformationURL == "" || cfg.Stations.StatusURL == "" {
		return errors.New("stations.informationUrl and stations.statusUrl are required")
	}
	if cfg.Network.DefaultDistanceMeters > cfg.Network.MaxDistanceMeters {
		return errors.Errorf("network.defaultDistanceMeters %.0f exceeds network.maxDistanceMeters %.0f",
			cfg.Network.DefaultDistanceMeters, cfg.Network.MaxDistanceMeters)
	}

	return nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
