package config

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type StorageConfig interface {
	GetCredentialBackend() string
	GetCredentialPath() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

type Storage struct {
	Backend       string `yaml:"backend" env:"ADMIN_CREDENTIAL_BACKEND" env-default:"file"`
	Path          string `yaml:"path" env:"ADMIN_CREDENTIAL_PATH" env-default:"./data/credentials.json"`
	RedisAddr     string `yaml:"redis_addr" env:"ADMIN_REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" env:"ADMIN_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"ADMIN_REDIS_DB" env-default:"0"`
	RedisPrefix   string `yaml:"redis_prefix" env:"ADMIN_REDIS_PREFIX" env-default:"admin-session"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetCredentialBackend() string {
	return s.Backend
}

func (s Storage) GetCredentialPath() string {
	return s.Path
}

func (s Storage) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Storage) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Storage) GetRedisDB() int {
	return s.RedisDB
}

func (s Storage) GetRedisPrefix() string {
	return s.RedisPrefix
}
