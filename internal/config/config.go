// Package config loads node configuration from YAML plus environment
// overrides into the configuration groups spec.md §6 defines, using
// spf13/viper and mapstructure.Unmarshal.
package config

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/synnergy-collab/nodecore/internal/nodeerr"
	"github.com/synnergy-collab/nodecore/internal/secrand"
)

// Config is the unified node configuration (spec.md §6).
type Config struct {
	NodeID string `mapstructure:"nodeId"`

	P2P struct {
		Port                 int           `mapstructure:"port"`
		BootstrapNodes       []string      `mapstructure:"bootstrapNodes"`
		MaxPeers             int           `mapstructure:"maxPeers"`
		HeartbeatInterval    time.Duration `mapstructure:"heartbeatInterval"`
		ReconnectDelay       time.Duration `mapstructure:"reconnectDelay"`
		MaxReconnectAttempts int           `mapstructure:"maxReconnectAttempts"`
	} `mapstructure:"p2p"`

	CRDT struct {
		GarbageCollectionInterval time.Duration `mapstructure:"garbageCollectionInterval"`
		TombstoneLifetime         time.Duration `mapstructure:"tombstoneLifetime"`
		MaxOperations             int           `mapstructure:"maxOperations"`
	} `mapstructure:"crdt"`

	Storage struct {
		DBPath             string `mapstructure:"dbPath"`
		CacheSize          int    `mapstructure:"cacheSize"`
		MaxLocalSize       int64  `mapstructure:"maxLocalSize"`
		CompressionEnabled bool   `mapstructure:"compressionEnabled"`
	} `mapstructure:"storage"`

	Crypto struct {
		KyberKeySize        int           `mapstructure:"kyberKeySize"`
		DilithiumKeySize    int           `mapstructure:"dilithiumKeySize"`
		AESKeySize          int           `mapstructure:"aesKeySize"`
		KeyRotationInterval time.Duration `mapstructure:"keyRotationInterval"`
	} `mapstructure:"crypto"`

	Monitoring struct {
		UpdateInterval   time.Duration `mapstructure:"updateInterval"`
		HistoryRetention time.Duration `mapstructure:"historyRetention"`
		AlertThresholds  struct {
			CPU            float64 `mapstructure:"cpu"`
			Memory         float64 `mapstructure:"memory"`
			Disk           float64 `mapstructure:"disk"`
			NetworkLatency float64 `mapstructure:"networkLatency"`
		} `mapstructure:"alertThresholds"`
	} `mapstructure:"monitoring"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("p2p.port", 7946)
	v.SetDefault("p2p.maxPeers", 64)
	v.SetDefault("p2p.heartbeatInterval", 10*time.Second)
	v.SetDefault("p2p.reconnectDelay", time.Second)
	v.SetDefault("p2p.maxReconnectAttempts", 0)

	v.SetDefault("crdt.garbageCollectionInterval", time.Minute)
	v.SetDefault("crdt.tombstoneLifetime", 24*time.Hour)
	v.SetDefault("crdt.maxOperations", 10000)

	v.SetDefault("storage.dbPath", "./data")
	v.SetDefault("storage.cacheSize", 1024)
	v.SetDefault("storage.maxLocalSize", int64(1<<30))
	v.SetDefault("storage.compressionEnabled", false)

	v.SetDefault("crypto.kyberKeySize", 768)
	v.SetDefault("crypto.dilithiumKeySize", 3)
	v.SetDefault("crypto.aesKeySize", 256)
	v.SetDefault("crypto.keyRotationInterval", 24*time.Hour)

	v.SetDefault("monitoring.updateInterval", 500*time.Millisecond)
	v.SetDefault("monitoring.historyRetention", time.Hour)
	v.SetDefault("monitoring.alertThresholds.cpu", 90.0)
	v.SetDefault("monitoring.alertThresholds.memory", 90.0)
	v.SetDefault("monitoring.alertThresholds.disk", 90.0)
	v.SetDefault("monitoring.alertThresholds.networkLatency", 500.0)
}

// Load reads configFile (if non-empty) and environment overrides (prefix
// NODECORE_, e.g. NODECORE_P2P_MAXPEERS) into a Config, auto-assigning
// nodeId when absent (spec.md §6).
func Load(configFile string, rnd secrand.Source) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("NODECORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, nodeerr.Wrap(err, nodeerr.IoError, "read config file")
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, nodeerr.Wrap(err, nodeerr.InvalidArgument, "unmarshal config")
	}

	if cfg.NodeID == "" {
		id, err := randomNodeID(rnd)
		if err != nil {
			return nil, err
		}
		cfg.NodeID = id
	}
	return &cfg, nil
}

// randomNodeID generates a 64-character lowercase hex identifier (spec.md
// §6: "Node identifier format: lowercase 64-character hex").
func randomNodeID(rnd secrand.Source) (string, error) {
	buf := make([]byte, 32)
	if _, err := rnd.Read(buf); err != nil {
		return "", nodeerr.Wrap(err, nodeerr.IoError, "generate random node id")
	}
	return hex.EncodeToString(buf), nil
}
