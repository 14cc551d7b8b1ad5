package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// SecretsEnvVar is the default env var holding a JSON object of secrets for config expansion.
const SecretsEnvVar = "CAMPMON_SECRETS"

// ConfigurationLoader loads the sync configuration. It is called once per sync operation,
// so implementations must not cache across calls.
type ConfigurationLoader interface {
	LoadConfiguration(ctx context.Context) (Config, error)
}

// ConfigurationLoaderFunc adapts a function to a ConfigurationLoader.
type ConfigurationLoaderFunc func(ctx context.Context) (Config, error)

func (f ConfigurationLoaderFunc) LoadConfiguration(ctx context.Context) (Config, error) {
	return f(ctx)
}

// JSONCompositeEnvVar looks variables up in the JSON object held by the Parent env var,
// falling back to the process environment.
type JSONCompositeEnvVar struct {
	Parent string
}

func (c JSONCompositeEnvVar) LookupEnv(child string) (string, bool) {
	if c.Parent != "" {
		s := os.Getenv(c.Parent)
		if s != "" {
			m := make(map[string]string)
			err := json.Unmarshal([]byte(s), &m)
			if err == nil {
				if v, exists := m[child]; exists {
					return v, true
				}
			}
		}
	}
	return os.LookupEnv(child)
}

// FileConfigurationLoader reads defaults.yaml and sync.yaml from Files on every call.
type FileConfigurationLoader struct {
	Files ConfigFiles
	Env   CompositeEnvVar
}

// NewFileConfigurationLoader creates a loader for the files in dir, expanding
// variables from SecretsEnvVar and the environment.
func NewFileConfigurationLoader(dir string) FileConfigurationLoader {
	return FileConfigurationLoader{
		Files: ConfigFiles{Root: ".", Files: os.DirFS(dir)},
		Env:   JSONCompositeEnvVar{Parent: SecretsEnvVar},
	}
}

func (l FileConfigurationLoader) LoadConfiguration(ctx context.Context) (Config, error) {
	var result Config
	defaultsFile, err := l.Files.FindDefaultsConfigFile()
	if err != nil {
		return result, NewConfigurationError("failed to read defaults config file", err)
	}
	syncFile, err := l.Files.MustFindSyncConfigFile()
	if err != nil {
		return result, NewConfigurationError("failed to read sync config file", err)
	}
	env := l.Env
	if env == nil {
		env = JSONCompositeEnvVar{Parent: SecretsEnvVar}
	}
	result, err = YAMLConfigUnmarshaler{}.Unmarshal(env, defaultsFile, syncFile)
	if err != nil {
		return result, fmt.Errorf("failed to load config %w", err)
	}
	return result, nil
}
