package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. DELIVERYSIM_PREP_TIME=4s.
const EnvPrefix = "DELIVERYSIM"

type CloudStorageConfig struct {
	Provider   string `mapstructure:"provider"`
	BucketName string `mapstructure:"bucket_name"`
	Region     string `mapstructure:"region"`
	Endpoint   string `mapstructure:"endpoint"` // S3 compatible stores such as MinIO
}

type Config struct {
	Seed int64 `mapstructure:"seed"`

	// delivery timings
	PrepTime      time.Duration `mapstructure:"prep_time"`
	DeliveryTime  time.Duration `mapstructure:"delivery_time"`
	DispatchDelay time.Duration `mapstructure:"dispatch_delay"`
	SignalPeriod  time.Duration `mapstructure:"signal_period"`

	// routing
	Planner         string  `mapstructure:"planner"` // "traffic" or "axis"
	TrafficPenalty  float64 `mapstructure:"traffic_penalty"`
	DetectionRadius float64 `mapstructure:"detection_radius"`
	Depot           Point   `mapstructure:"depot"`

	// order generator, disabled when OrderInterval is zero
	OrderInterval time.Duration `mapstructure:"order_interval"`
	MaxOrders     int           `mapstructure:"max_orders"`
	Menu          []MenuItem    `mapstructure:"menu"`

	StateSampleTicks int `mapstructure:"state_sample_ticks"`

	OutputFormat      string             `mapstructure:"output_format"` // console, json, csv, parquet
	OutputPath        string             `mapstructure:"output_path"`
	OutputFolder      string             `mapstructure:"output_folder"`
	OutputDestination string             `mapstructure:"output_destination"` // local or cloud
	CloudStorage      CloudStorageConfig `mapstructure:"cloud_storage"`

	KafkaEnabled    bool   `mapstructure:"kafka_enabled"`
	KafkaBrokerList string `mapstructure:"kafka_broker_list"`

	MQTTEnabled  bool   `mapstructure:"mqtt_enabled"`
	MQTTBroker   string `mapstructure:"mqtt_broker"`
	MQTTClientID string `mapstructure:"mqtt_client_id"`
	MQTTQoS      byte   `mapstructure:"mqtt_qos"`

	HTTPAddr    string `mapstructure:"http_addr"`
	ProgressBar bool   `mapstructure:"progress_bar"`
}

// DefaultConfig returns the timings and map settings of the reference pizza shop.
func DefaultConfig() *Config {
	return &Config{
		Seed:              42,
		PrepTime:          8 * time.Second,
		DeliveryTime:      10 * time.Second,
		DispatchDelay:     500 * time.Millisecond,
		SignalPeriod:      5 * time.Second,
		Planner:           "traffic",
		TrafficPenalty:    20,
		DetectionRadius:   2,
		Depot:             Point{X: 20, Y: 20},
		Menu:              append([]MenuItem(nil), DefaultMenu...),
		StateSampleTicks:  30,
		OutputFormat:      "console",
		OutputFolder:      "deliverysim",
		OutputDestination: "local",
		KafkaBrokerList:   "localhost:9092",
		MQTTBroker:        "tcp://localhost:1883",
		MQTTClientID:      "deliverysim",
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("seed", d.Seed)
	v.SetDefault("prep_time", d.PrepTime)
	v.SetDefault("delivery_time", d.DeliveryTime)
	v.SetDefault("dispatch_delay", d.DispatchDelay)
	v.SetDefault("signal_period", d.SignalPeriod)
	v.SetDefault("planner", d.Planner)
	v.SetDefault("traffic_penalty", d.TrafficPenalty)
	v.SetDefault("detection_radius", d.DetectionRadius)
	v.SetDefault("depot.x", d.Depot.X)
	v.SetDefault("depot.y", d.Depot.Y)
	v.SetDefault("state_sample_ticks", d.StateSampleTicks)
	v.SetDefault("output_format", d.OutputFormat)
	v.SetDefault("output_folder", d.OutputFolder)
	v.SetDefault("output_destination", d.OutputDestination)
	v.SetDefault("kafka_broker_list", d.KafkaBrokerList)
	v.SetDefault("mqtt_broker", d.MQTTBroker)
	v.SetDefault("mqtt_client_id", d.MQTTClientID)
}

// LoadConfig initializes and reads the configuration using Viper. An empty cfgFile
// means defaults, flags and environment only.
func LoadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	decoderConfigOption := viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			config.DecodeHook,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		)
	})
	if err := v.Unmarshal(&config, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	if len(config.Menu) == 0 {
		config.Menu = append([]MenuItem(nil), DefaultMenu...)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the simulation cannot run with.
func (cfg *Config) Validate() error {
	switch {
	case cfg.DeliveryTime <= 0:
		return fmt.Errorf("invalid config: delivery_time must be positive, got %s", cfg.DeliveryTime)
	case cfg.PrepTime < 0:
		return fmt.Errorf("invalid config: prep_time must not be negative, got %s", cfg.PrepTime)
	case cfg.DispatchDelay < 0:
		return fmt.Errorf("invalid config: dispatch_delay must not be negative, got %s", cfg.DispatchDelay)
	case cfg.SignalPeriod <= 0:
		return fmt.Errorf("invalid config: signal_period must be positive, got %s", cfg.SignalPeriod)
	case cfg.Planner != "traffic" && cfg.Planner != "axis":
		return fmt.Errorf("invalid config: unknown planner %q", cfg.Planner)
	case cfg.TrafficPenalty < 0:
		return fmt.Errorf("invalid config: traffic_penalty must not be negative")
	}
	return nil
}
