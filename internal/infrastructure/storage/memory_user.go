package storage

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/vcspc/whatsapp-gemini-bot/internal/domain/entity"
	"github.com/vcspc/whatsapp-gemini-bot/internal/domain/repository"
)

const (
	// historyMaxTurns limite da janela de histórico por usuário
	historyMaxTurns = 20

	// historyPrefixTurns turnos iniciais preservados como contexto de setup
	historyPrefixTurns = 3

	// cooldownDuration duração fixa do período de cooldown
	cooldownDuration = time.Hour
)

type memoryUserState struct {
	mu        sync.RWMutex
	names     map[string]string
	histories map[string][]entity.ConversationTurn
	cooldowns map[string]time.Time
	now       func() time.Time
}

// NewMemoryUserState cria o repositório em memória de estado por usuário
func NewMemoryUserState() repository.UserStateRepository {
	return &memoryUserState{
		names:     make(map[string]string),
		histories: make(map[string][]entity.ConversationTurn),
		cooldowns: make(map[string]time.Time),
		now:       time.Now,
	}
}

// GetName retorna o nome armazenado ou o placeholder padrão
func (m *memoryUserState) GetName(ctx context.Context, userID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if name, exists := m.names[userID]; exists {
		return name
	}
	return entity.DefaultUserName
}

// SetName registra o nome do usuário; vazio mantém o placeholder
func (m *memoryUserState) SetName(ctx context.Context, userID, name string) {
	if name == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.names[userID] = name
}

// AppendTurn adiciona um turno e aplica a janela de retenção: quando o
// histórico passa do limite, os primeiros turnos são preservados e apenas
// os mais recentes do restante são mantidos
func (m *memoryUserState) AppendTurn(ctx context.Context, userID, text string, role entity.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.histories[userID], entity.ConversationTurn{Role: role, Text: text})

	if len(history) > historyMaxTurns {
		tail := historyMaxTurns - historyPrefixTurns
		trimmed := make([]entity.ConversationTurn, 0, historyMaxTurns)
		trimmed = append(trimmed, history[:historyPrefixTurns]...)
		trimmed = append(trimmed, history[len(history)-tail:]...)
		history = trimmed
	}

	m.histories[userID] = history
	return nil
}

// GetHistory retorna uma cópia do histórico, segura para repassar ao backend
func (m *memoryUserState) GetHistory(ctx context.Context, userID string) ([]entity.ConversationTurn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history, exists := m.histories[userID]
	if !exists {
		return []entity.ConversationTurn{}, nil
	}

	out := make([]entity.ConversationTurn, len(history))
	copy(out, history)
	return out, nil
}

// SetCooldownIfTriggered ativa o cooldown quando a resposta contém alguma
// frase gatilho como frase inteira, sem diferenciar maiúsculas
func (m *memoryUserState) SetCooldownIfTriggered(ctx context.Context, userID, replyText string, triggerPhrases []string) bool {
	if replyText == "" {
		return false
	}

	triggered := false
	for _, phrase := range triggerPhrases {
		if phrase == "" {
			continue
		}
		if triggerPattern(phrase).MatchString(replyText) {
			triggered = true
			break
		}
	}

	if !triggered {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cooldowns[userID] = m.now().Add(cooldownDuration)
	return true
}

// IsInCooldown informa se o usuário está em cooldown; entradas expiradas
// são removidas na leitura
func (m *memoryUserState) IsInCooldown(ctx context.Context, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, exists := m.cooldowns[userID]
	if !exists {
		return false
	}

	if m.now().Before(expiry) {
		return true
	}

	delete(m.cooldowns, userID)
	return false
}

// triggerPattern monta a regex de frase inteira para uma frase gatilho.
// O \b só é aplicado quando a borda da frase é um caractere de palavra;
// frases decoradas com pontuação continuam casando.
func triggerPattern(phrase string) *regexp.Regexp {
	pattern := regexp.QuoteMeta(phrase)
	if isWordChar(rune(phrase[0])) {
		pattern = `\b` + pattern
	}
	if isWordChar(rune(phrase[len(phrase)-1])) {
		pattern += `\b`
	}
	return regexp.MustCompile("(?i)" + pattern)
}

func isWordChar(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
