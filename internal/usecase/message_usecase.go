package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vcspc/whatsapp-gemini-bot/config"
	"github.com/vcspc/whatsapp-gemini-bot/internal/domain/entity"
	"github.com/vcspc/whatsapp-gemini-bot/internal/domain/repository"
)

const (
	// requestTimeout limite superior para as etapas que falam com o backend
	requestTimeout = 60 * time.Second

	errorApology = "Desculpe, ocorreu um erro ao processar sua mensagem."
	quotaApology = "Desculpe, o limite de mensagens foi atingido. Por favor, tente novamente mais tarde."
)

// InboundMessage mensagem recebida do transporte. Os callbacks dão acesso
// às operações do transporte sem acoplar o usecase à camada de entrega.
type InboundMessage struct {
	SenderID  string
	Body      string
	HasMedia  bool
	MediaKind entity.MediaKind
	Timestamp time.Time

	// DownloadMedia baixa a mídia anexada; presente apenas quando HasMedia
	DownloadMedia func(ctx context.Context) (*entity.MediaPayload, error)

	// ResolveContactName consulta o nome do contato no transporte
	ResolveContactName func(ctx context.Context) (string, error)

	// OnAdmitted avisa o transporte que a mensagem passou por todas as
	// verificações de admissão e a geração da resposta vai começar.
	// Rejeições nunca disparam o aviso: nada fica observável para o
	// remetente rejeitado.
	OnAdmitted func()
}

// MessageUseCase pipeline de admissão de mensagens
type MessageUseCase interface {
	// ProcessMessage executa o pipeline para uma mensagem. Uma resposta
	// vazia com erro sentinela significa rejeição silenciosa: nada é
	// enviado ao remetente. Falhas de backend viram uma resposta fixa de
	// desculpas, que é enviada.
	ProcessMessage(ctx context.Context, msg InboundMessage) (string, error)
}

type messageUseCase struct {
	aiRepo   repository.AIRepository
	userRepo repository.UserStateRepository
	rateGate *RateGate
	logger   repository.EventLogger
	cfg      *config.Config
}

// NewMessageUseCase cria o pipeline de admissão
func NewMessageUseCase(
	aiRepo repository.AIRepository,
	userRepo repository.UserStateRepository,
	rateGate *RateGate,
	logger repository.EventLogger,
	cfg *config.Config,
) MessageUseCase {
	return &messageUseCase{
		aiRepo:   aiRepo,
		userRepo: userRepo,
		rateGate: rateGate,
		logger:   logger,
		cfg:      cfg,
	}
}

// ProcessMessage aplica as verificações na ordem fixa: filtro de grupo,
// autorização, cooldown, rate gate, e só então as etapas que custam
// chamadas ao backend
func (u *messageUseCase) ProcessMessage(ctx context.Context, msg InboundMessage) (string, error) {
	userID := msg.SenderID
	userName := u.userRepo.GetName(ctx, userID)

	// Sempre registra a mensagem recebida, autorizada ou não
	u.logger.IncomingMessage(userName, userID, msg.Body)

	// 1. Filtro de grupo
	if !strings.HasSuffix(userID, config.IndividualChatSuffix) {
		u.logger.ProcessingStep(userName, userID, "ACESSO NEGADO", entity.ErrGroupNotAllowed.Error())
		return "", entity.ErrGroupNotAllowed
	}

	// 2. Autorização
	authorized := u.cfg.IsPhoneNumberAllowed(userID)
	u.logger.Authorization(userName, userID, authorized)
	if !authorized {
		return "", entity.ErrUnauthorized
	}

	// 3. Cooldown
	if u.userRepo.IsInCooldown(ctx, userID) {
		u.logger.Cooldown(userName, userID, "Usuário em período de cooldown")
		return "", entity.ErrInCooldown
	}

	// 4. Rate gate, imediatamente antes de qualquer trabalho caro
	u.rateGate.Admit()

	if msg.OnAdmitted != nil {
		msg.OnAdmitted()
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	reply, err := u.respond(ctx, msg, userID, &userName)
	if err != nil {
		// Validação reprovada é rejeição silenciosa, não falha
		if errors.Is(err, entity.ErrNotAligned) {
			return "", err
		}

		u.logger.Error(userName, userID, err)
		apology := errorApology
		if errors.Is(err, entity.ErrQuotaExceeded) {
			apology = quotaApology
		}
		u.logger.OutgoingMessage(userName, userID, apology)
		return apology, nil
	}

	u.logger.OutgoingMessage(userName, userID, reply)
	return reply, nil
}

// respond executa as etapas 5 a 9 do pipeline; qualquer erro retornado é
// convertido em desculpas pelo chamador
func (u *messageUseCase) respond(ctx context.Context, msg InboundMessage, userID string, userName *string) (string, error) {
	// 5. Resolução de identidade
	if *userName == entity.DefaultUserName && msg.ResolveContactName != nil {
		if resolved, err := msg.ResolveContactName(ctx); err == nil && resolved != "" {
			u.userRepo.SetName(ctx, userID, resolved)
			*userName = resolved
			u.logger.ProcessingStep(*userName, userID, "CONTATO", "Nome do contato resolvido")
		}
	}

	// 6. Enriquecimento de mídia; falha degrada para texto
	text := msg.Body
	if msg.HasMedia && msg.DownloadMedia != nil {
		text = u.enrichWithMedia(ctx, msg, userID, *userName)
	}

	// 7. Validação de alinhamento
	u.logger.ProcessingStep(*userName, userID, "VALIDAÇÃO", "Iniciando validação da mensagem")
	valid := u.aiRepo.ValidateAlignment(ctx, []string{text})
	u.logger.Validation(*userName, userID, valid)
	if !valid {
		return "", entity.ErrNotAligned
	}

	// 8. Geração da resposta com o histórico atual
	u.logger.ProcessingStep(*userName, userID, "HISTÓRICO", "Recuperando histórico da conversa")
	history, err := u.userRepo.GetHistory(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get history: %w", err)
	}

	u.logger.ProcessingStep(*userName, userID, "IA", "Gerando resposta")
	reply, err := u.aiRepo.GenerateReply(ctx, text, history)
	if err != nil {
		return "", err
	}

	// 9. Atualização de estado, só depois da geração bem-sucedida
	if err := u.userRepo.AppendTurn(ctx, userID, text, entity.RoleUser); err != nil {
		return "", fmt.Errorf("failed to append user turn: %w", err)
	}
	if err := u.userRepo.AppendTurn(ctx, userID, reply, entity.RoleAssistant); err != nil {
		return "", fmt.Errorf("failed to append assistant turn: %w", err)
	}

	if u.userRepo.SetCooldownIfTriggered(ctx, userID, reply, u.cfg.CooldownTriggerMessages) {
		u.logger.Cooldown(*userName, userID, "Cooldown ativado")
	}

	return reply, nil
}

// enrichWithMedia baixa e interpreta a mídia anexada, prefixando a
// interpretação ao texto efetivo; em caso de falha a mensagem segue só
// com o texto e um aviso literal
func (u *messageUseCase) enrichWithMedia(ctx context.Context, msg InboundMessage, userID, userName string) string {
	u.logger.ProcessingStep(userName, userID, "MÍDIA", "Processando mídia")

	media, err := msg.DownloadMedia(ctx)
	if err != nil {
		u.logger.Error(userName, userID, fmt.Errorf("%w: %v", entity.ErrMediaDownload, err))
		if msg.Body == "" {
			return fmt.Sprintf("[Não foi possível baixar a %s enviada pelo usuário]", msg.MediaKind)
		}
		return fmt.Sprintf("[Não foi possível baixar a %s enviada pelo usuário]\n\nMensagem do usuário: %s", msg.MediaKind, msg.Body)
	}

	interpretation, err := u.aiRepo.InterpretMedia(ctx, *media, msg.Body)
	if err != nil {
		u.logger.Error(userName, userID, err)
		return fmt.Sprintf("[Não foi possível interpretar a %s]\n\nMensagem do usuário: %s", media.Kind, msg.Body)
	}

	u.logger.ProcessingStep(userName, userID, "MÍDIA", "Mídia processada com sucesso")
	return fmt.Sprintf("[Interpretação da %s]: %s\n\nMensagem do usuário: %s", media.Kind, interpretation, msg.Body)
}
