package config

type StorageConfig interface {
	GetDataFolder() string
	GetSessionBackend() string
	GetSessionPassphrase() string
}

const (
	SessionBackendFile   = "file"
	SessionBackendSQLite = "sqlite"
	SessionBackendMemory = "memory"
)

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetDataFolder() string {
	return GetEnv("DATA_FOLDER", "./data")
}

// GetSessionBackend selects where the session survives restarts: file, sqlite or memory
func (Storage) GetSessionBackend() string {
	return GetEnv("SESSION_BACKEND", SessionBackendFile)
}

// GetSessionPassphrase enables at-rest encryption of the file backend when set
func (Storage) GetSessionPassphrase() string {
	return GetEnv("SESSION_PASSPHRASE", "")
}
