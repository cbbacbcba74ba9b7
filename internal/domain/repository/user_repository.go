package repository

import (
	"context"

	"github.com/vcspc/whatsapp-gemini-bot/internal/domain/entity"
)

// UserStateRepository estado por usuário: identidade, histórico e cooldown
type UserStateRepository interface {
	// GetName retorna o nome armazenado ou o placeholder padrão
	GetName(ctx context.Context, userID string) string

	// SetName registra o nome do usuário; vazio mantém o placeholder
	SetName(ctx context.Context, userID, name string)

	// AppendTurn adiciona um turno ao histórico e aplica a janela de retenção
	AppendTurn(ctx context.Context, userID, text string, role entity.Role) error

	// GetHistory retorna uma cópia do histórico na ordem de inserção
	GetHistory(ctx context.Context, userID string) ([]entity.ConversationTurn, error)

	// SetCooldownIfTriggered ativa o cooldown se a resposta contém alguma
	// frase gatilho (frase inteira, sem diferenciar maiúsculas); retorna
	// true quando ativado
	SetCooldownIfTriggered(ctx context.Context, userID, replyText string, triggerPhrases []string) bool

	// IsInCooldown informa se o usuário está em cooldown; entradas
	// expiradas são removidas na leitura
	IsInCooldown(ctx context.Context, userID string) bool
}
