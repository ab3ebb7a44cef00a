// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/rigchat/internal/model"
)

// DefaultSystemPrompt is used for new conversations when none is given.
const DefaultSystemPrompt = "You are a professional AI assistant. Please answer the user's questions clearly and accurately."

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigchat configuration.
type Config struct {
	Ollama  OllamaConfig  `toml:"ollama" json:"ollama"`
	Online  OnlineConfig  `toml:"online" json:"online"`
	Chat    ChatConfig    `toml:"chat" json:"chat"`
	Server  ServerConfig  `toml:"server" json:"server"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// OllamaConfig describes the local inference server.
type OllamaConfig struct {
	BaseURL      string   `toml:"base_url" json:"base_url"`
	Models       []string `toml:"models" json:"models"`
	DefaultModel string   `toml:"default_model" json:"default_model"`
}

// OnlineConfig describes the hosted providers, keyed by provider name.
type OnlineConfig struct {
	DefaultProvider string                    `toml:"default_provider" json:"default_provider"`
	Providers       map[string]ProviderConfig `toml:"providers" json:"providers"`
}

// ProviderConfig is one hosted provider.
type ProviderConfig struct {
	BaseURL string `toml:"base_url" json:"base_url"`
	Model   string `toml:"model" json:"model"`
	// APIKeyEnv names the environment variable holding the key.
	APIKeyEnv string `toml:"api_key_env" json:"api_key_env"`
}

// ChatConfig holds conversation and generation defaults.
type ChatConfig struct {
	MaxHistoryLength int     `toml:"max_history_length" json:"max_history_length"`
	Temperature      float64 `toml:"temperature" json:"temperature"`
	MaxTokens        int     `toml:"max_tokens" json:"max_tokens"`
	SystemPrompt     string  `toml:"system_prompt" json:"system_prompt"`
}

// ServerConfig is the web API listen address.
type ServerConfig struct {
	Host string `toml:"host" json:"host"`
	Port int    `toml:"port" json:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`   // debug, info, warn, error
	Format string `toml:"format" json:"format"` // text or json
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			BaseURL:      "http://localhost:11434",
			Models:       []string{"llama3.1:8b", "deepseek-r1:8b", "gemma3:12b"},
			DefaultModel: "llama3.1:8b",
		},
		Online: OnlineConfig{
			DefaultProvider: "deepseek",
			Providers: map[string]ProviderConfig{
				"deepseek": {
					BaseURL:   "https://api.deepseek.com/v1",
					Model:     "deepseek-chat",
					APIKeyEnv: "DEEPSEEK_API_KEY",
				},
				"gemini": {
					BaseURL:   "https://generativelanguage.googleapis.com/v1beta",
					Model:     "gemini-pro",
					APIKeyEnv: "GEMINI_API_KEY",
				},
				"openai": {
					BaseURL:   "https://api.openai.com/v1",
					Model:     "gpt-3.5-turbo",
					APIKeyEnv: "OPENAI_API_KEY",
				},
			},
		},
		Chat: ChatConfig{
			MaxHistoryLength: 50,
			Temperature:      model.DefaultTemperature,
			MaxTokens:        model.DefaultMaxTokens,
			SystemPrompt:     DefaultSystemPrompt,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults fills zero values left by a partial file.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = d.Ollama.BaseURL
	}
	if len(c.Ollama.Models) == 0 {
		c.Ollama.Models = d.Ollama.Models
	}
	if c.Ollama.DefaultModel == "" {
		c.Ollama.DefaultModel = c.Ollama.Models[0]
	}
	if c.Online.Providers == nil {
		c.Online.Providers = d.Online.Providers
	}
	if c.Online.DefaultProvider == "" {
		c.Online.DefaultProvider = d.Online.DefaultProvider
	}
	if c.Chat.MaxHistoryLength == 0 {
		c.Chat.MaxHistoryLength = d.Chat.MaxHistoryLength
	}
	if c.Chat.MaxTokens == 0 {
		c.Chat.MaxTokens = d.Chat.MaxTokens
	}
	if c.Chat.SystemPrompt == "" {
		c.Chat.SystemPrompt = d.Chat.SystemPrompt
	}
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns ~/.rigchat.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigchat"), nil
}

// ConfigPath returns ~/.rigchat/config.toml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir creates the config directory with owner-only access.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o700)
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads ~/.rigchat/config.toml when present.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, cfg.Validate()
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the TOML file at path. A missing file is not an
// error; defaults and environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		// Providers from the file replace the defaults wholesale, and an
		// unset default model follows the file's model list.
		cfg.Online.Providers = nil
		cfg.Ollama.DefaultModel = ""
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", statErr)
	}

	cfg.SetDefaults()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to ~/.rigchat/config.toml.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path with owner-only permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// SECURITY: 0600, even if the file already existed with wider access.
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# rigchat configuration file")
	fmt.Fprintln(file, "# API keys are read from the environment variables named by api_key_env.")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies RIGCHAT_* variables. Unparseable numbers are
// ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RIGCHAT_OLLAMA_URL"); v != "" {
		c.Ollama.BaseURL = v
	}
	if v := os.Getenv("RIGCHAT_MODEL"); v != "" {
		c.Ollama.DefaultModel = v
	}
	if v := os.Getenv("RIGCHAT_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("RIGCHAT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("RIGCHAT_MAX_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Chat.MaxHistoryLength = n
		}
	}
	if v := os.Getenv("RIGCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidateErrors collects every invalid field.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks ranges and URLs. It returns ValidateErrors or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if !validHTTPURL(c.Ollama.BaseURL) {
		add("ollama.base_url", "must be an http or https URL")
	}
	if _, ok := c.LookupModel(c.Ollama.DefaultModel); !ok {
		add("ollama.default_model", "must be a configured model or provider")
	}
	for name, p := range c.Online.Providers {
		if !validHTTPURL(p.BaseURL) {
			add("online.providers."+name+".base_url", "must be an http or https URL")
		}
		if p.Model == "" {
			add("online.providers."+name+".model", "must not be empty")
		}
	}
	if c.Chat.MaxHistoryLength < 1 {
		add("chat.max_history_length", "must be at least 1")
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		add("chat.temperature", "must be between 0 and 2")
	}
	if c.Chat.MaxTokens < 1 {
		add("chat.max_tokens", "must be at least 1")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", "must be between 1 and 65535")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", "must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		add("logging.format", "must be text or json")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// =============================================================================
// MODEL LOOKUP
// =============================================================================

// ModelRef is a selectable model name resolved against the config.
type ModelRef struct {
	// Name is what the user selects: an Ollama model or a provider name.
	Name     string     `json:"name"`
	Kind     model.Kind `json:"type"`
	Provider string     `json:"provider,omitempty"`
	// Model is the backend model identifier.
	Model     string `json:"model_name"`
	BaseURL   string `json:"base_url"`
	APIKeyEnv string `json:"api_key_env,omitempty"`
}

// APIKey reads the provider key from the environment.
func (r ModelRef) APIKey() string {
	if r.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(r.APIKeyEnv)
}

// AllModels lists selectable names: Ollama models in configured order,
// then hosted provider names sorted.
func (c *Config) AllModels() []string {
	names := slices.Clone(c.Ollama.Models)
	providers := make([]string, 0, len(c.Online.Providers))
	for name := range c.Online.Providers {
		providers = append(providers, name)
	}
	slices.Sort(providers)
	return append(names, providers...)
}

// IsValidModel reports whether name is selectable.
func (c *Config) IsValidModel(name string) bool {
	_, ok := c.LookupModel(name)
	return ok
}

// LookupModel resolves a selectable name. Ollama models win over a
// provider of the same name.
func (c *Config) LookupModel(name string) (ModelRef, bool) {
	if slices.Contains(c.Ollama.Models, name) {
		return ModelRef{
			Name:    name,
			Kind:    model.KindOllama,
			Model:   name,
			BaseURL: c.Ollama.BaseURL,
		}, true
	}
	if p, ok := c.Online.Providers[name]; ok {
		return ModelRef{
			Name:      name,
			Kind:      model.KindOnline,
			Provider:  name,
			Model:     p.Model,
			BaseURL:   p.BaseURL,
			APIKeyEnv: p.APIKeyEnv,
		}, true
	}
	return ModelRef{}, false
}

// ChatOptions returns generation defaults with the given system prompt.
func (c *Config) ChatOptions(systemPrompt string) model.ChatOptions {
	return model.ChatOptions{
		SystemPrompt: systemPrompt,
		Temperature:  c.Chat.Temperature,
		MaxTokens:    c.Chat.MaxTokens,
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Ollama.Models = slices.Clone(c.Ollama.Models)
	cp.Online.Providers = make(map[string]ProviderConfig, len(c.Online.Providers))
	for k, v := range c.Online.Providers {
		cp.Online.Providers[k] = v
	}
	return &cp
}
