package config

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	appNameVar        = "APP_NAME"
	apiBaseURLVar     = "API_BASE_URL"
	socketURLVar      = "SOCKET_URL"
	folderEnvVar      = "FOLDER"
	credentialsKeyVar = "CREDENTIALS_KEY"
)

func init() {
	// Best effort, env vars win over the .env file
	_ = godotenv.Load()
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "MentorLink")
}

// GetAPIBaseURL returns the base URL of the platform's request/response API
func (EnvVars) GetAPIBaseURL() string {
	return GetEnv(apiBaseURLVar, "http://localhost:3001/api")
}

// GetSocketURL returns the websocket endpoint for the real-time channel
func (EnvVars) GetSocketURL() string {
	return GetEnv(socketURLVar, "ws://localhost:3001/ws")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

// GetCredentialsKey returns the hex-encoded 32 byte key used to encrypt the
// credential file at rest. Empty means the file is stored unencrypted.
func (EnvVars) GetCredentialsKey() string {
	return GetEnv(credentialsKeyVar, "")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
