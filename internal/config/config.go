// Package config manages the JSON configuration file. API keys and the admin
// password hash are stored AES-256-GCM encrypted on disk; plaintext values in
// a hand-edited file are accepted on load and encrypted on the next save.
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const encryptedPrefix = "enc:"

// LLMConfig configures the chat completion backend.
type LLMConfig struct {
	Endpoint     string  `json:"endpoint"`
	APIKey       string  `json:"api_key"`
	ModelName    string  `json:"model_name"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	SystemPrompt string  `json:"system_prompt"`
	TimeoutSecs  int     `json:"timeout_secs"`
}

// EmbeddingConfig configures the embedding backend.
type EmbeddingConfig struct {
	Endpoint    string `json:"endpoint"`
	APIKey      string `json:"api_key"`
	ModelName   string `json:"model_name"`
	TimeoutSecs int    `json:"timeout_secs"`
}

// VectorConfig configures chunking, retrieval, and on-disk storage paths.
type VectorConfig struct {
	ChunkSize int    `json:"chunk_size"` // words per chunk
	TopK      int    `json:"top_k"`
	CacheDir  string `json:"cache_dir"` // embedding cache directory
	DBPath    string `json:"db_path"`   // sqlite metadata database
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port         int `json:"port"`
	RateLimit    int `json:"rate_limit"` // requests per minute per client
	MaxUploadMB  int `json:"max_upload_mb"`
	MaxRequestKB int `json:"max_request_kb"`
}

// AdminConfig holds the bcrypt hash guarding config mutation endpoints.
type AdminConfig struct {
	PasswordHash string `json:"password_hash"`
}

// Config is the full application configuration.
type Config struct {
	LLM       LLMConfig       `json:"llm"`
	Embedding EmbeddingConfig `json:"embedding"`
	Vector    VectorConfig    `json:"vector"`
	Server    ServerConfig    `json:"server"`
	Admin     AdminConfig     `json:"admin"`
}

// DefaultConfig targets a local OpenAI-compatible server (e.g. Ollama).
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Endpoint:    "http://localhost:11434/v1",
			ModelName:   "qwen2.5",
			Temperature: 0.3,
			MaxTokens:   2048,
			TimeoutSecs: 120,
		},
		Embedding: EmbeddingConfig{
			Endpoint:    "http://localhost:11434/v1",
			ModelName:   "nomic-embed-text",
			TimeoutSecs: 30,
		},
		Vector: VectorConfig{
			ChunkSize: 500,
			TopK:      2,
			CacheDir:  "./data/embeddings",
			DBPath:    "./data/docqa.db",
		},
		Server: ServerConfig{
			Port:         8080,
			RateLimit:    60,
			MaxUploadMB:  50,
			MaxRequestKB: 1024,
		},
	}
}

// ConfigManager loads, saves, and updates the config file. All accessors are
// safe for concurrent use.
type ConfigManager struct {
	mu     sync.RWMutex
	path   string
	key    []byte
	config *Config
}

// NewConfigManagerWithKey creates a manager with an explicit 32-byte AES key.
func NewConfigManagerWithKey(path string, key []byte) (*ConfigManager, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return &ConfigManager{
		path:   path,
		key:    key,
		config: DefaultConfig(),
	}, nil
}

// NewConfigManager creates a manager whose key lives in keyPath. A missing
// key file is created with fresh random bytes and 0600 permissions.
func NewConfigManager(path, keyPath string) (*ConfigManager, error) {
	key, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		key = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("failed to generate encryption key: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create key directory: %w", err)
		}
		if err := os.WriteFile(keyPath, key, 0600); err != nil {
			return nil, fmt.Errorf("failed to write encryption key: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read encryption key: %w", err)
	}
	return NewConfigManagerWithKey(path, key)
}

// Load reads the config file, decrypting secret fields. A missing file is
// populated with defaults and written out.
func (cm *ConfigManager) Load() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	data, err := os.ReadFile(cm.path)
	if os.IsNotExist(err) {
		cm.config = DefaultConfig()
		return cm.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.LLM.APIKey, err = cm.decryptIfNeeded(cfg.LLM.APIKey); err != nil {
		return fmt.Errorf("failed to decrypt llm api key: %w", err)
	}
	if cfg.Embedding.APIKey, err = cm.decryptIfNeeded(cfg.Embedding.APIKey); err != nil {
		return fmt.Errorf("failed to decrypt embedding api key: %w", err)
	}
	if cfg.Admin.PasswordHash, err = cm.decryptIfNeeded(cfg.Admin.PasswordHash); err != nil {
		return fmt.Errorf("failed to decrypt admin password hash: %w", err)
	}

	cm.config = cfg
	return nil
}

// Save writes the config to disk with secret fields encrypted.
func (cm *ConfigManager) Save() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.saveLocked()
}

func (cm *ConfigManager) saveLocked() error {
	onDisk := *cm.config
	onDisk.LLM.APIKey = cm.encryptIfNeeded(onDisk.LLM.APIKey)
	onDisk.Embedding.APIKey = cm.encryptIfNeeded(onDisk.Embedding.APIKey)
	onDisk.Admin.PasswordHash = cm.encryptIfNeeded(onDisk.Admin.PasswordHash)

	data, err := json.MarshalIndent(&onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cm.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(cm.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Get returns a copy of the current config.
func (cm *ConfigManager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	cfg := *cm.config
	return &cfg
}

// Update applies dotted-key updates (e.g. "llm.endpoint") and persists.
// Unknown keys are rejected before anything is modified.
func (cm *ConfigManager) Update(updates map[string]interface{}) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	next := *cm.config
	for key, value := range updates {
		if err := applyUpdate(&next, key, value); err != nil {
			return err
		}
	}
	cm.config = &next
	return cm.saveLocked()
}

func applyUpdate(cfg *Config, key string, value interface{}) error {
	switch key {
	case "llm.endpoint":
		return setString(&cfg.LLM.Endpoint, key, value)
	case "llm.api_key":
		return setString(&cfg.LLM.APIKey, key, value)
	case "llm.model_name":
		return setString(&cfg.LLM.ModelName, key, value)
	case "llm.system_prompt":
		return setString(&cfg.LLM.SystemPrompt, key, value)
	case "llm.temperature":
		return setFloat(&cfg.LLM.Temperature, key, value)
	case "llm.max_tokens":
		return setInt(&cfg.LLM.MaxTokens, key, value)
	case "llm.timeout_secs":
		return setInt(&cfg.LLM.TimeoutSecs, key, value)
	case "embedding.endpoint":
		return setString(&cfg.Embedding.Endpoint, key, value)
	case "embedding.api_key":
		return setString(&cfg.Embedding.APIKey, key, value)
	case "embedding.model_name":
		return setString(&cfg.Embedding.ModelName, key, value)
	case "embedding.timeout_secs":
		return setInt(&cfg.Embedding.TimeoutSecs, key, value)
	case "vector.chunk_size":
		return setInt(&cfg.Vector.ChunkSize, key, value)
	case "vector.top_k":
		return setInt(&cfg.Vector.TopK, key, value)
	case "server.rate_limit":
		return setInt(&cfg.Server.RateLimit, key, value)
	case "server.max_upload_mb":
		return setInt(&cfg.Server.MaxUploadMB, key, value)
	case "admin.password_hash":
		return setString(&cfg.Admin.PasswordHash, key, value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

func setString(dst *string, key string, value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("config key %s requires a string, got %T", key, value)
	}
	*dst = s
	return nil
}

func setInt(dst *int, key string, value interface{}) error {
	switch v := value.(type) {
	case int:
		*dst = v
	case float64: // JSON numbers decode as float64
		*dst = int(v)
	default:
		return fmt.Errorf("config key %s requires a number, got %T", key, value)
	}
	return nil
}

func setFloat(dst *float64, key string, value interface{}) error {
	switch v := value.(type) {
	case float64:
		*dst = v
	case int:
		*dst = float64(v)
	default:
		return fmt.Errorf("config key %s requires a number, got %T", key, value)
	}
	return nil
}

// encryptIfNeeded encrypts a secret for storage. Empty strings and values
// already carrying the encrypted prefix pass through unchanged.
func (cm *ConfigManager) encryptIfNeeded(value string) string {
	if value == "" || len(value) >= len(encryptedPrefix) && value[:len(encryptedPrefix)] == encryptedPrefix {
		return value
	}

	block, err := aes.NewCipher(cm.key)
	if err != nil {
		return value
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return value
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return value
	}
	sealed := gcm.Seal(nonce, nonce, []byte(value), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed)
}

// decryptIfNeeded decrypts a stored secret. Values without the encrypted
// prefix are treated as plaintext from a hand-edited file.
func (cm *ConfigManager) decryptIfNeeded(value string) (string, error) {
	if value == "" || len(value) < len(encryptedPrefix) || value[:len(encryptedPrefix)] != encryptedPrefix {
		return value, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(value[len(encryptedPrefix):])
	if err != nil {
		return "", fmt.Errorf("invalid encrypted value: %w", err)
	}
	block, err := aes.NewCipher(cm.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(sealed) < gcm.NonceSize() {
		return "", fmt.Errorf("encrypted value too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}
	return string(plain), nil
}
