package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vcspc/whatsapp-gemini-bot/internal/domain/entity"
	"github.com/vcspc/whatsapp-gemini-bot/internal/domain/repository"
)

const (
	generationModel = "gemini-1.5-flash"
	validationModel = "gemini-1.5-flash-8b"

	maxOutputTokens       = 1000
	validationTemperature = 0.1

	// Validação: até 3 mensagens por chamada, 3 tentativas com 1s entre elas
	maxValidatedMessages  = 3
	maxValidationAttempts = 3
	validationRetryDelay  = time.Second

	// Limite de rodadas de function calling em uma mesma resposta
	maxToolRounds = 3

	currentTimeTool = "get_current_time"
)

const validationPrompt = `Verifique se a seguinte mensagem está alinhada com o objetivo do chatbot: "%s". Mensagem: "%s". Se não está alinhada, responda com "não". Se está alinhada, responda com "sim".`

type geminiClient struct {
	client       *genai.Client
	model        *genai.GenerativeModel
	validator    *genai.GenerativeModel
	systemPrompt string
	retryDelay   time.Duration

	// classify envia um prompt de classificação ao modelo de validação
	// e retorna o texto da resposta; substituível em testes
	classify func(ctx context.Context, prompt string) (string, error)
}

// NewGeminiClient cria o cliente da API do Gemini
func NewGeminiClient(apiKey, systemPrompt string, temperature float32) (repository.AIRepository, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(generationModel)
	model.SetTemperature(temperature)
	model.SetMaxOutputTokens(maxOutputTokens)
	model.Tools = []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        currentTimeTool,
			Description: "Retorna a hora atual no formato HH:MM",
		}},
	}}

	// Modelo menor e mais frio para a classificação de alinhamento
	validator := client.GenerativeModel(validationModel)
	validator.SetTemperature(validationTemperature)

	g := &geminiClient{
		client:       client,
		model:        model,
		validator:    validator,
		systemPrompt: systemPrompt,
		retryDelay:   validationRetryDelay,
	}
	g.classify = func(ctx context.Context, prompt string) (string, error) {
		resp, err := g.validator.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", err
		}
		return extractText(resp), nil
	}
	return g, nil
}

// GenerateReply gera a resposta usando o system prompt como primeiro turno
// do chat, seguido do histórico janelado e da mensagem nova
func (g *geminiClient) GenerateReply(ctx context.Context, message string, history []entity.ConversationTurn) (string, error) {
	chat := g.model.StartChat()
	chat.History = g.buildHistory(history)

	resp, err := chat.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", classifyBackendError(err)
	}

	// Responde chamadas de função até o modelo produzir texto
	for round := 0; round < maxToolRounds; round++ {
		call, ok := findFunctionCall(resp)
		if !ok {
			break
		}

		resp, err = chat.SendMessage(ctx, genai.FunctionResponse{
			Name:     call.Name,
			Response: toolResult(call.Name),
		})
		if err != nil {
			return "", classifyBackendError(err)
		}
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: resposta sem candidatos de texto", entity.ErrBackend)
	}
	return text, nil
}

// ValidateAlignment classifica se as mensagens (até as 3 primeiras) estão
// alinhadas com o objetivo do assistente; toda a validação é repetida em
// caso de falha transitória e retorna false ao esgotar as tentativas
func (g *geminiClient) ValidateAlignment(ctx context.Context, messages []string) bool {
	for attempt := 0; attempt < maxValidationAttempts; attempt++ {
		aligned, err := g.checkAlignment(ctx, messages)
		if err == nil {
			return aligned
		}

		if !isTransientError(err) || attempt == maxValidationAttempts-1 {
			return false
		}
		time.Sleep(g.retryDelay)
	}
	return false
}

func (g *geminiClient) checkAlignment(ctx context.Context, messages []string) (bool, error) {
	limit := len(messages)
	if limit > maxValidatedMessages {
		limit = maxValidatedMessages
	}

	for i := 0; i < limit; i++ {
		prompt := fmt.Sprintf(validationPrompt, g.systemPrompt, messages[i])

		analysis, err := g.classify(ctx, prompt)
		if err != nil {
			return false, err
		}

		if !strings.Contains(strings.ToLower(analysis), "sim") {
			return false, nil
		}
	}
	return true, nil
}

// InterpretMedia interpreta uma mídia como texto em uma única requisição
// multimodal, considerando a mensagem que a acompanha
func (g *geminiClient) InterpretMedia(ctx context.Context, media entity.MediaPayload, accompanyingText string) (string, error) {
	prompt := mediaPrompt(media.Kind)
	if accompanyingText != "" {
		prompt += fmt.Sprintf("Considere também esta mensagem do usuário: %s", accompanyingText)
	}

	resp, err := g.model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{MIMEType: media.MimeType, Data: media.Data},
	)
	if err != nil {
		return "", classifyBackendError(err)
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: interpretação vazia", entity.ErrBackend)
	}
	return text, nil
}

// Close fecha o cliente
func (g *geminiClient) Close() error {
	return g.client.Close()
}

// buildHistory traduz o histórico para o formato do chat: o system prompt
// vira o primeiro turno com papel "model"
func (g *geminiClient) buildHistory(history []entity.ConversationTurn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	contents = append(contents, &genai.Content{
		Role:  "model",
		Parts: []genai.Part{genai.Text(g.systemPrompt)},
	})

	for _, turn := range history {
		role := "model"
		if turn.Role == entity.RoleUser {
			role = "user"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}
	return contents
}

// mediaPrompt seleciona a instrução de interpretação pelo tipo de mídia
func mediaPrompt(kind entity.MediaKind) string {
	switch kind {
	case entity.MediaImage:
		return "Descreva detalhadamente esta imagem e seu contexto. "
	case entity.MediaVideo:
		return "Analise este vídeo e descreva seu conteúdo. "
	case entity.MediaAudio, entity.MediaVoiceNote:
		return "Transcreva e interprete o conteúdo deste áudio. "
	default:
		return "Descreva o conteúdo deste arquivo. "
	}
}

// toolResult resolve o resultado de uma função declarada ao modelo
func toolResult(name string) map[string]any {
	switch name {
	case currentTimeTool:
		return map[string]any{"time": time.Now().Format("15:04")}
	default:
		return map[string]any{"error": fmt.Sprintf("função desconhecida: %s", name)}
	}
}

// extractText concatena as partes de texto da resposta
func extractText(resp *genai.GenerateContentResponse) string {
	var result strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				result.WriteString(string(text))
			}
		}
	}
	return result.String()
}

// findFunctionCall retorna a primeira chamada de função da resposta
func findFunctionCall(resp *genai.GenerateContentResponse) (genai.FunctionCall, bool) {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if call, ok := part.(genai.FunctionCall); ok {
				return call, true
			}
		}
	}
	return genai.FunctionCall{}, false
}

// classifyBackendError separa esgotamento de quota das demais falhas do
// backend; nenhuma das duas derruba o processo
func classifyBackendError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", entity.ErrQuotaExceeded, err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "quota") {
		return fmt.Errorf("%w: %v", entity.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%w: %v", entity.ErrBackend, err)
}

// isTransientError identifica falhas temporárias do backend (503)
func isTransientError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusServiceUnavailable {
		return true
	}
	return strings.Contains(err.Error(), "503")
}
