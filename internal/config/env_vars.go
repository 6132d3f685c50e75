package config

import "os"

const (
	appNameVar    = "VF_APP_NAME"
	apiBaseURLVar = "VF_API_URL"
	folderEnvVar  = "VF_DATA_FOLDER"
	storageKeyVar = "VF_STORAGE_KEY"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "VeloFlux Session")
}

// GetAPIBaseURL returns the base URL of the VeloFlux backend API
// (e.g. "https://app.veloflux.io")
func (EnvVars) GetAPIBaseURL() string {
	return GetEnv(apiBaseURLVar, "http://localhost:8080")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

// GetStorageKey returns the passphrase protecting persisted session
// values. Empty means values are stored in the clear.
func (EnvVars) GetStorageKey() string {
	return GetEnv(storageKeyVar, "")
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
