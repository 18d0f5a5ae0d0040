// Package config loads the engine's ambient tuning knobs: which
// ssh/rsync/scp binaries to invoke, how large a hash chunk to use, and
// where to keep SSH control-master sockets. Spec §6 ("Persisted state:
// none across invocations") is about transfer state, not this: these
// are process-start settings, read once and never written back.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"kosmokopy/internal/util"
)

var printer = util.Default

// ConfigFileName is the optional YAML file a run picks up from the
// current directory or its nearest ancestor holding one, mirroring the teacher's single well-known
// config-file-name convention.
const ConfigFileName = "kosmokopy.yaml"

// Config holds the engine's ambient tuning. Every field has a usable
// zero-value default (Defaults fills them in), so the file itself is
// entirely optional.
type Config struct {
	SSHBinary      string `yaml:"ssh_binary"`
	ScpBinary      string `yaml:"scp_binary"`
	RsyncBinary    string `yaml:"rsync_binary"`
	HashChunkBytes int    `yaml:"hash_chunk_bytes"`
	SocketDir      string `yaml:"socket_dir"`
}

// Defaults returns the configuration a bare invocation runs with: the
// binaries resolved off PATH by name, hashsum's own chunk size, and a
// control-socket directory under the system temp dir (os.TempDir).
func Defaults() Config {
	return Config{
		SSHBinary:      "ssh",
		ScpBinary:      "scp",
		RsyncBinary:    "rsync",
		HashChunkBytes: 256 * 1024,
		SocketDir:      filepath.Join(os.TempDir(), "kosmokopy-ssh"),
	}
}

// Load finds ConfigFileName by searching the current directory and its
// ancestors (so a run from a project subdirectory still picks up a
// config file at the project root), overlaying it onto Defaults(). A
// missing file is not an error — kosmokopy runs fine with no config
// file at all.
func Load() (Config, error) {
	cfg := Defaults()

	dir, err := util.FindConfigRoot(ConfigFileName)
	if err != nil {
		return cfg, fmt.Errorf("config: resolve config directory: %w", err)
	}
	configPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(configPath); err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	envMap, _ := loadDotEnvIfExists(dir)
	rendered := interpolateEnv(string(data), envMap)

	if err := yaml.Unmarshal([]byte(rendered), &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", configPath, err)
	}
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.HashChunkBytes <= 0 {
		return fmt.Errorf("config: hash_chunk_bytes must be positive, got %d", cfg.HashChunkBytes)
	}
	return nil
}

// Exists reports whether ConfigFileName is present in the current
// directory.
func Exists() bool {
	_, err := os.Stat(ConfigFileName)
	return err == nil
}

// Path returns the absolute path Load() would read from, resolving the
// same ancestor search Load() performs.
func Path() string {
	dir, err := util.FindConfigRoot(ConfigFileName)
	if err != nil {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ConfigFileName)
	}
	return filepath.Join(dir, ConfigFileName)
}

// loadDotEnvIfExists loads a .env file alongside the config file, if
// one exists, for ${VAR} interpolation below.
func loadDotEnvIfExists(dir string) (map[string]string, error) {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	m, err := godotenv.Read(envPath)
	if err != nil {
		printer.Printf("warning: failed to parse %s: %v\n", envPath, err)
		return map[string]string{}, err
	}
	return m, nil
}

// interpolateEnv replaces ${VAR} and $VAR in input, OS environment
// taking precedence over the .env file. A missing variable becomes an
// empty string, with a warning rather than a hard failure.
func interpolateEnv(input string, envMap map[string]string) string {
	return os.Expand(input, func(name string) string {
		if v := os.Getenv(name); v != "" {
			return v
		}
		if v, ok := envMap[name]; ok {
			return v
		}
		printer.Printf("warning: environment variable %s not set; using empty string\n", name)
		return ""
	})
}
