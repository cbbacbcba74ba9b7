package gemini

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"

	"github.com/vcspc/whatsapp-gemini-bot/internal/domain/entity"
)

// O cliente expõe Close para o ciclo de vida do processo
var _ io.Closer = (*geminiClient)(nil)

// validatorClient monta um cliente com o classificador substituído, sem
// tocar a API real
func validatorClient(classify func(ctx context.Context, prompt string) (string, error)) *geminiClient {
	return &geminiClient{
		systemPrompt: "Você é um assistente.",
		retryDelay:   time.Millisecond,
		classify:     classify,
	}
}

func textResponse(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: parts},
		}},
	}
}

func TestClassifyBackendError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"status 429 da API", &googleapi.Error{Code: http.StatusTooManyRequests, Message: "rate limited"}, entity.ErrQuotaExceeded},
		{"429 no texto do erro", errors.New("rpc error: code 429"), entity.ErrQuotaExceeded},
		{"quota no texto do erro", errors.New("RESOURCE_EXHAUSTED: Quota exceeded"), entity.ErrQuotaExceeded},
		{"status 500 da API", &googleapi.Error{Code: http.StatusInternalServerError}, entity.ErrBackend},
		{"erro de rede genérico", errors.New("connection refused"), entity.ErrBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyBackendError(tt.err)
			if !errors.Is(got, tt.sentinel) {
				t.Errorf("classifyBackendError(%v) = %v, esperava %v", tt.err, got, tt.sentinel)
			}
		})
	}
}

func TestIsTransientError(t *testing.T) {
	if !isTransientError(&googleapi.Error{Code: http.StatusServiceUnavailable}) {
		t.Error("status 503 da API deveria ser transitório")
	}
	if !isTransientError(errors.New("rpc error: 503 service unavailable")) {
		t.Error("503 no texto do erro deveria ser transitório")
	}
	if isTransientError(&googleapi.Error{Code: http.StatusTooManyRequests}) {
		t.Error("429 não é transitório para a validação")
	}
	if isTransientError(errors.New("connection refused")) {
		t.Error("erro de rede genérico não é transitório")
	}
}

func TestMediaPrompt(t *testing.T) {
	tests := []struct {
		kind entity.MediaKind
		want string
	}{
		{entity.MediaImage, "imagem"},
		{entity.MediaVideo, "vídeo"},
		{entity.MediaAudio, "áudio"},
		{entity.MediaVoiceNote, "áudio"},
		{entity.MediaKind("document"), "arquivo"},
	}

	for _, tt := range tests {
		got := mediaPrompt(tt.kind)
		if !strings.Contains(got, tt.want) {
			t.Errorf("mediaPrompt(%q) = %q, esperava menção a %q", tt.kind, got, tt.want)
		}
	}
}

func TestBuildHistory_SystemPromptFirst(t *testing.T) {
	g := &geminiClient{systemPrompt: "Você é um assistente."}

	contents := g.buildHistory([]entity.ConversationTurn{
		{Role: entity.RoleUser, Text: "oi"},
		{Role: entity.RoleAssistant, Text: "olá"},
	})

	if len(contents) != 3 {
		t.Fatalf("esperava 3 conteúdos, obteve %d", len(contents))
	}
	if contents[0].Role != "model" {
		t.Errorf("system prompt deveria ter papel model, obteve %q", contents[0].Role)
	}
	if text, ok := contents[0].Parts[0].(genai.Text); !ok || string(text) != "Você é um assistente." {
		t.Errorf("primeiro conteúdo deveria ser o system prompt, obteve %v", contents[0].Parts[0])
	}
	if contents[1].Role != "user" {
		t.Errorf("turno do usuário deveria ter papel user, obteve %q", contents[1].Role)
	}
	if contents[2].Role != "model" {
		t.Errorf("turno do assistente deveria ter papel model, obteve %q", contents[2].Role)
	}
}

func TestBuildHistory_EmptyHistoryStillCarriesSystemPrompt(t *testing.T) {
	g := &geminiClient{systemPrompt: "prompt"}

	contents := g.buildHistory(nil)
	if len(contents) != 1 {
		t.Fatalf("esperava só o system prompt, obteve %d conteúdos", len(contents))
	}
}

func TestExtractText_ConcatenatesParts(t *testing.T) {
	resp := textResponse(genai.Text("Bom dia! "), genai.Text("Como posso ajudar?"))

	if got := extractText(resp); got != "Bom dia! Como posso ajudar?" {
		t.Errorf("extractText = %q", got)
	}
}

func TestExtractText_IgnoresNonTextParts(t *testing.T) {
	resp := textResponse(genai.FunctionCall{Name: "get_current_time"}, genai.Text("14:30"))

	if got := extractText(resp); got != "14:30" {
		t.Errorf("extractText = %q, esperava só as partes de texto", got)
	}
}

func TestExtractText_EmptyResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: nil}},
	}
	if got := extractText(resp); got != "" {
		t.Errorf("extractText = %q, esperava vazio", got)
	}
}

func TestFindFunctionCall(t *testing.T) {
	resp := textResponse(genai.FunctionCall{Name: currentTimeTool})

	call, ok := findFunctionCall(resp)
	if !ok {
		t.Fatal("chamada de função não foi encontrada")
	}
	if call.Name != currentTimeTool {
		t.Errorf("nome da função = %q", call.Name)
	}

	if _, ok := findFunctionCall(textResponse(genai.Text("olá"))); ok {
		t.Error("resposta só com texto não deveria conter chamada de função")
	}
}

func TestValidateAlignment_Approves(t *testing.T) {
	calls := 0
	g := validatorClient(func(ctx context.Context, prompt string) (string, error) {
		calls++
		if !strings.Contains(prompt, "oi, tudo bem?") {
			t.Errorf("prompt de classificação sem a mensagem: %q", prompt)
		}
		return "Sim", nil
	})

	if !g.ValidateAlignment(context.Background(), []string{"oi, tudo bem?"}) {
		t.Error("resposta afirmativa deveria aprovar a mensagem")
	}
	if calls != 1 {
		t.Errorf("classificador chamado %d vezes, esperava 1", calls)
	}
}

func TestValidateAlignment_RejectsOnNegativeAnswer(t *testing.T) {
	calls := 0
	g := validatorClient(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "não", nil
	})

	if g.ValidateAlignment(context.Background(), []string{"um", "dois", "três"}) {
		t.Error("resposta negativa deveria reprovar")
	}
	// A primeira reprovação encerra sem classificar as demais mensagens
	if calls != 1 {
		t.Errorf("classificador chamado %d vezes, esperava 1", calls)
	}
}

func TestValidateAlignment_ChecksOnlyFirstThreeMessages(t *testing.T) {
	calls := 0
	g := validatorClient(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "sim", nil
	})

	messages := []string{"um", "dois", "três", "quatro", "cinco"}
	if !g.ValidateAlignment(context.Background(), messages) {
		t.Error("todas afirmativas deveriam aprovar")
	}
	if calls != maxValidatedMessages {
		t.Errorf("classificador chamado %d vezes, esperava %d", calls, maxValidatedMessages)
	}
}

func TestValidateAlignment_RetriesTransientFault(t *testing.T) {
	calls := 0
	g := validatorClient(func(ctx context.Context, prompt string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("rpc error: 503 service unavailable")
		}
		return "sim", nil
	})

	if !g.ValidateAlignment(context.Background(), []string{"oi"}) {
		t.Error("falha transitória seguida de sucesso deveria aprovar")
	}
	if calls != 2 {
		t.Errorf("classificador chamado %d vezes, esperava 2 (retry)", calls)
	}
}

func TestValidateAlignment_NonTransientFaultFailsClosed(t *testing.T) {
	calls := 0
	g := validatorClient(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "", errors.New("connection refused")
	})

	if g.ValidateAlignment(context.Background(), []string{"oi"}) {
		t.Error("falha não transitória deveria reprovar")
	}
	if calls != 1 {
		t.Errorf("classificador chamado %d vezes, falha não transitória não tem retry", calls)
	}
}

func TestValidateAlignment_ExhaustsRetriesThenFailsClosed(t *testing.T) {
	calls := 0
	g := validatorClient(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "", errors.New("503 service unavailable")
	})

	if g.ValidateAlignment(context.Background(), []string{"oi"}) {
		t.Error("esgotar as tentativas deveria reprovar")
	}
	if calls != maxValidationAttempts {
		t.Errorf("classificador chamado %d vezes, esperava %d", calls, maxValidationAttempts)
	}
}

func TestToolResult(t *testing.T) {
	result := toolResult(currentTimeTool)
	got, ok := result["time"].(string)
	if !ok {
		t.Fatalf("resultado sem campo time: %v", result)
	}
	if len(got) != 5 || got[2] != ':' {
		t.Errorf("hora fora do formato HH:MM: %q", got)
	}

	unknown := toolResult("abrir_agenda")
	if _, ok := unknown["error"]; !ok {
		t.Errorf("função desconhecida deveria retornar erro, obteve %v", unknown)
	}
}
