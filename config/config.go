package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del monitor.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Polygon PolygonConfig `yaml:"polygon"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig controla el servidor HTTP del dashboard.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`            // ej. ":8080"
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS; vacío = permitir todos
}

// APIConfig contiene los base URLs de las APIs de Polymarket.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
	WSBase    string `yaml:"ws_base"` // stream de precios del CLOB
}

// PolygonConfig apunta al RPC usado para verificar transacciones de merge.
// Solo lectura: el monitor nunca firma ni envía transacciones.
type PolygonConfig struct {
	RPCURL string `yaml:"rpc_url"`
}

// StorageConfig controla dónde se persiste el log de eventos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
// Si el archivo YAML no existe, se usan solo env + defaults (el monitor puede
// arrancar sin config en disco).
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	case os.IsNotExist(err):
		// sin archivo: seguimos con defaults
	default:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POLYWATCH_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("POLYGON_RPC_URL"); v != "" {
		cfg.Polygon.RPCURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.WSBase == "" {
		cfg.API.WSBase = "wss://ws-subscriptions-clob.polymarket.com/ws"
	}
	if cfg.Polygon.RPCURL == "" {
		cfg.Polygon.RPCURL = "https://polygon-rpc.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polywatch.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
