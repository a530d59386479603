package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
)

// localConfigFile is picked up from the working directory when no --config
// flag is given.
const localConfigFile = "chatorg.toml"

// ServerConfig is the serve command's file-backed configuration. Flags set
// explicitly on the command line override file values.
type ServerConfig struct {
	Addr       string `toml:"addr"`
	EncKeyPath string `toml:"enc_key_path"`
	TempDir    string `toml:"temp_dir"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:       ":5000",
		EncKeyPath: "chatorg_secret.key",
	}
}

// loadServerConfig resolves the config: --config wins, then ./chatorg.toml,
// else just the defaults. A missing explicit file is an error; a missing
// local file is not.
func loadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()

	path := cfgPath
	if path == "" {
		if _, err := os.Stat(localConfigFile); err == nil {
			path = localConfigFile
		}
	}
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ServerConfig{}, fmt.Errorf("config file not found: %s", path)
		}
		return ServerConfig{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}
