package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Provider 名称，决定 relay 使用哪种上游。
const (
	ProviderHTTP = "http"
	ProviderArk  = "ark"
)

const (
	defaultRelayEndpoint = "https://api.huggingface.co/models/Qwen/Qwen2.5-14B-Instruct/v1/chat/completions"
	defaultRelayModel    = "Qwen/Qwen2.5-14B-Instruct"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Relay   RelayConfig
	Session SessionConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	relay, err := loadRelayConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Relay: relay, Session: session, Log: logCfg}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// RelayConfig 描述聊天转发（relay）相关配置。
// APIToken 为空时服务仍可启动，但每次 relay 调用都会返回配置错误。
type RelayConfig struct {
	Provider    string
	Endpoint    string
	Model       string
	APIToken    string
	MaxTokens   int
	Temperature float32
	TopP        float32
	// HTTPTimeout 为 0 表示沿用 transport 默认值（不设超时）。
	HTTPTimeout time.Duration
	Ark         ArkConfig
}

// ArkConfig 描述 Ark 大模型凭证，仅在 RELAY_PROVIDER=ark 时使用。
type ArkConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context, maxTokens int, temperature, topP float32) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	}
	if maxTokens > 0 {
		cfg.MaxTokens = &maxTokens
	}
	if temperature > 0 {
		cfg.Temperature = &temperature
	}
	if topP > 0 {
		cfg.TopP = &topP
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadRelayConfig() (RelayConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("RELAY_PROVIDER", ProviderHTTP))
	if provider != ProviderHTTP && provider != ProviderArk {
		return RelayConfig{}, fmt.Errorf("invalid RELAY_PROVIDER value %q: want %q or %q", provider, ProviderHTTP, ProviderArk)
	}

	maxTokens := 300
	if override, err := parseOptionalIntEnv("RELAY_MAX_TOKENS"); err != nil {
		return RelayConfig{}, err
	} else if override != nil {
		maxTokens = *override
	}

	temperature := float32(0.7)
	if override, err := parseOptionalFloat32Env("RELAY_TEMPERATURE"); err != nil {
		return RelayConfig{}, err
	} else if override != nil {
		temperature = *override
	}

	topP := float32(0.9)
	if override, err := parseOptionalFloat32Env("RELAY_TOP_P"); err != nil {
		return RelayConfig{}, err
	} else if override != nil {
		topP = *override
	}

	timeout, err := parseDurationEnv("RELAY_HTTP_TIMEOUT", 0)
	if err != nil {
		return RelayConfig{}, err
	}

	// HF_TOKEN 为历史变量名，保留兼容。
	token := strings.TrimSpace(os.Getenv("RELAY_API_TOKEN"))
	if token == "" {
		token = strings.TrimSpace(os.Getenv("HF_TOKEN"))
	}

	return RelayConfig{
		Provider:    provider,
		Endpoint:    getEnvOrDefault("RELAY_ENDPOINT", defaultRelayEndpoint),
		Model:       getEnvOrDefault("RELAY_MODEL", defaultRelayModel),
		APIToken:    token,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
		HTTPTimeout: timeout,
		Ark: ArkConfig{
			APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			Model:     strings.TrimSpace(os.Getenv("ARK_MODEL")),
			BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
		},
	}, nil
}

// SessionConfig 描述会话管理相关配置。
type SessionConfig struct {
	TypingDelay   time.Duration
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	typingDelay, err := parseDurationEnv("SESSION_TYPING_DELAY", time.Second)
	if err != nil {
		return SessionConfig{}, err
	}
	if typingDelay < 0 {
		typingDelay = 0
	}

	idleTTL, err := parseDurationEnv("SESSION_IDLE_TTL", 30*time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}

	sweep, err := parseDurationEnv("SESSION_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}
	if sweep <= 0 {
		sweep = time.Minute
	}

	return SessionConfig{
		TypingDelay:   typingDelay,
		IdleTTL:       idleTTL,
		SweepInterval: sweep,
	}, nil
}

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Level       string
	File        string
	Development bool
}

func loadLogConfig() (LogConfig, error) {
	dev, err := parseBoolEnv("LOG_DEVELOPMENT", false)
	if err != nil {
		return LogConfig{}, err
	}

	return LogConfig{
		Level:       strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		File:        strings.TrimSpace(os.Getenv("LOG_FILE")),
		Development: dev,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
