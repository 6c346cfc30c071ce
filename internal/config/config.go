package config

type Config interface {
	EnvConfig
}

type EnvConfig interface {
	GetAppName() string
	GetAPIBaseURL() string
	GetSocketURL() string
	GetDataFolder() string
	GetCredentialsKey() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
