package repository

import (
	"context"

	"github.com/vcspc/whatsapp-gemini-bot/internal/domain/entity"
)

// AIRepository operações do backend de geração de texto
type AIRepository interface {
	// GenerateReply gera a resposta para a mensagem usando o histórico
	// já janelado do usuário; não modifica o histórico recebido
	GenerateReply(ctx context.Context, message string, history []entity.ConversationTurn) (string, error)

	// ValidateAlignment classifica se as mensagens (até as 3 primeiras)
	// estão alinhadas com o objetivo do assistente; retorna false ao
	// esgotar as tentativas de retry
	ValidateAlignment(ctx context.Context, messages []string) bool

	// InterpretMedia interpreta uma mídia como texto, considerando a
	// mensagem que a acompanha
	InterpretMedia(ctx context.Context, media entity.MediaPayload, accompanyingText string) (string, error)
}
