// internal/config/config.go
package config

import (
	"log"

	"github.com/spf13/viper"

	"github.com/Gavinw575/plant-moisture-monitor/internal/auth"
)

// Config is the process bootstrap configuration: everything that selects
// how the engine is wired rather than how sensors are calibrated. Sensor
// calibration lives in the Store (moisture_config.json), not here.
type Config struct {
	Server struct {
		HTTPPort int `mapstructure:"http_port"`
	} `mapstructure:"server"`
	Monitor struct {
		SensorCount int    `mapstructure:"sensor_count"`
		Source      string `mapstructure:"source"`      // "local", "network" or "simulated"
		ListenPort  int    `mapstructure:"listen_port"` // network ingest variant
		Filler      string `mapstructure:"filler"`      // "unavailable" or "simulated"
		ConfigFile  string `mapstructure:"config_file"` // calibration file path
	} `mapstructure:"monitor"`
	Auth auth.Config `mapstructure:"auth"`
}

var AppConfig Config

// LoadConfig reads config.yaml from path, falling back to defaults for
// anything missing. A missing file is not an error; the engine runs with
// defaults.
func LoadConfig(path string) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Error reading config file: %s", err)
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Printf("Unable to decode config into struct: %v", err)
		return err
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("monitor.sensor_count", 3)
	viper.SetDefault("monitor.source", "local")
	viper.SetDefault("monitor.listen_port", 5000)
	viper.SetDefault("monitor.filler", "unavailable")
	viper.SetDefault("monitor.config_file", "moisture_config.json")
	viper.SetDefault("auth.jwt_expiration", 60)
}
