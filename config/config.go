package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Modos de filtragem de números
const (
	FilterModeAllowed = "allowed"
	FilterModeBlocked = "blocked"
)

const (
	// IndividualChatSuffix sufixo que identifica um chat individual
	IndividualChatSuffix = "@c.us"

	// DefaultCooldownTrigger frase de escalada que ativa o cooldown
	DefaultCooldownTrigger = "Vou repassar para o doutor Vinícius"

	defaultTemperature        = 0.4
	defaultMinMessageInterval = 2 * time.Second
	defaultWhatsAppDBPath     = "data/whatsapp.db"
	defaultLogFilePath        = "logs/whatsapp-bot.log"
)

// Config configurações da aplicação
type Config struct {
	GeminiAPIKey            string
	SystemPrompt            string
	GeminiTemperature       float32
	PhoneFilterMode         string
	AllowedPhoneNumbers     []string
	BlockedPhoneNumbers     []string
	CooldownTriggerMessages []string
	MinTimeBetweenMessages  time.Duration
	WhatsAppDBPath          string
	LogFilePath             string
}

// Load carrega a configuração do ambiente
func Load() (*Config, error) {
	// Carrega o arquivo .env (se existir)
	_ = godotenv.Load()

	config := &Config{
		GeminiAPIKey:            os.Getenv("GEMINI_API_KEY"),
		SystemPrompt:            os.Getenv("SYSTEM_PROMPT"),
		GeminiTemperature:       defaultTemperature,
		PhoneFilterMode:         FilterModeAllowed,
		AllowedPhoneNumbers:     splitList(os.Getenv("ALLOWED_PHONE_NUMBERS")),
		BlockedPhoneNumbers:     splitList(os.Getenv("BLOCKED_PHONE_NUMBERS")),
		CooldownTriggerMessages: []string{DefaultCooldownTrigger},
		MinTimeBetweenMessages:  defaultMinMessageInterval,
		WhatsAppDBPath:          defaultWhatsAppDBPath,
		LogFilePath:             defaultLogFilePath,
	}

	if raw := os.Getenv("GEMINI_TEMPERATURE"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return nil, fmt.Errorf("GEMINI_TEMPERATURE em formato inválido: %w", err)
		}
		config.GeminiTemperature = float32(parsed)
	}

	if mode := os.Getenv("PHONE_FILTER_MODE"); mode != "" {
		if mode != FilterModeAllowed && mode != FilterModeBlocked {
			return nil, fmt.Errorf("PHONE_FILTER_MODE desconhecido: %q", mode)
		}
		config.PhoneFilterMode = mode
	}

	if raw := os.Getenv("COOLDOWN_TRIGGER_MESSAGES"); raw != "" {
		var triggers []string
		if err := json.Unmarshal([]byte(raw), &triggers); err != nil {
			return nil, fmt.Errorf("COOLDOWN_TRIGGER_MESSAGES não é um array JSON válido: %w", err)
		}
		config.CooldownTriggerMessages = triggers
	}

	if path := os.Getenv("WHATSAPP_DB_PATH"); path != "" {
		config.WhatsAppDBPath = path
	}

	if path := os.Getenv("LOG_FILE_PATH"); path != "" {
		config.LogFilePath = path
	}

	// Validação
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable vazia")
	}
	if config.SystemPrompt == "" {
		return nil, fmt.Errorf("SYSTEM_PROMPT environment variable vazia")
	}

	return config, nil
}

// IsPhoneNumberAllowed avalia a política de autorização para um remetente.
// Identificadores de grupo nunca são admitidos, independente das listas.
func (c *Config) IsPhoneNumberAllowed(phoneNumber string) bool {
	if !strings.HasSuffix(phoneNumber, IndividualChatSuffix) {
		return false
	}

	if c.PhoneFilterMode == FilterModeAllowed {
		return len(c.AllowedPhoneNumbers) == 0 || contains(c.AllowedPhoneNumbers, phoneNumber)
	}
	return !contains(c.BlockedPhoneNumbers, phoneNumber)
}

func splitList(raw string) []string {
	var list []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
