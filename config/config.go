package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config repräsentiert die Hauptkonfiguration der Anwendung
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	Face    FaceConfig    `mapstructure:"face"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Camera  CameraConfig  `mapstructure:"camera"`
	Vehicle VehicleConfig `mapstructure:"vehicle"`
}

// ServerConfig enthält Server-bezogene Einstellungen
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
}

// LogConfig enthält Log-Einstellungen
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig enthält Datenbankeinstellungen (SQLite)
type DBConfig struct {
	File string `mapstructure:"file"`
}

// FaceConfig enthält die Einstellungen für die Microsoft-Face-API
type FaceConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	AzureRegion         string `mapstructure:"azure_region"`
	APIKey              string `mapstructure:"api_key"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
	SyncIntervalMinutes int    `mapstructure:"sync_interval_minutes"`
}

// MQTTConfig enthält die Konfiguration für den MQTT-Client
type MQTTConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	Broker        string              `mapstructure:"broker"`
	Port          int                 `mapstructure:"port"`
	Username      string              `mapstructure:"username"`
	Password      string              `mapstructure:"password"`
	ClientID      string              `mapstructure:"client_id"`
	CommandTopic  string              `mapstructure:"command_topic"`
	HomeAssistant HomeAssistantConfig `mapstructure:"homeassistant"`
}

// HomeAssistantConfig enthält die Konfiguration für die Home Assistant Integration
type HomeAssistantConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
}

// CameraConfig enthält die Einstellungen für die Snapshot-Quelle (Frigate o.ä.)
type CameraConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// VehicleConfig enthält die Einstellungen für den Fahrzeug-Tracker
type VehicleConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	URL                 string `mapstructure:"url"`
	APIKey              string `mapstructure:"api_key"`
	PollIntervalMinutes int    `mapstructure:"poll_interval_minutes"`
}

// Load lädt die Konfiguration aus Datei, Umgebungsvariablen und Standardwerten
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Konfigurationsdatei laden, wenn vorhanden
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Umgebungsvariablen überlagern die Konfiguration
	v.AutomaticEnv()
	v.SetEnvPrefix("FACE_BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// setDefaults legt Standardwerte für die Konfiguration fest
func setDefaults(v *viper.Viper) {
	// Server-Standardwerte
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.data_dir", "/data")

	// Log-Standardwerte
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "/data/logs/face-bridge.log")

	// DB-Standardwerte
	v.SetDefault("db.file", "/data/face-bridge.db")

	// Face-API-Standardwerte
	v.SetDefault("face.enabled", true)
	v.SetDefault("face.azure_region", "westus")
	v.SetDefault("face.timeout_seconds", 10)
	v.SetDefault("face.sync_interval_minutes", 0)

	// MQTT-Standardwerte
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "face-bridge-go")
	v.SetDefault("mqtt.command_topic", "face_bridge/command/#")
	v.SetDefault("mqtt.homeassistant.enabled", false)
	v.SetDefault("mqtt.homeassistant.discovery_prefix", "homeassistant")

	// Kamera-Standardwerte
	v.SetDefault("camera.enabled", false)

	// Fahrzeug-Standardwerte
	v.SetDefault("vehicle.enabled", false)
	v.SetDefault("vehicle.poll_interval_minutes", 5)
}

// ensureDirectories stellt sicher, dass alle erforderlichen Verzeichnisse existieren
func ensureDirectories(cfg *Config) error {
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	if cfg.Log.File != "" {
		logDir := filepath.Dir(cfg.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	if cfg.DB.File != "" {
		dbDir := filepath.Dir(cfg.DB.File)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}
