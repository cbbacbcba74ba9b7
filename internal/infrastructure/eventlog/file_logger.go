package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Categorias de evento registradas no log
const (
	eventIncoming   = "mensagem_recebida"
	eventAuth       = "autorizacao"
	eventValidation = "validacao"
	eventProcessing = "processamento"
	eventCooldown   = "cooldown"
	eventOutgoing   = "mensagem_enviada"
	eventError      = "erro"
)

// FileLogger grava eventos estruturados (JSON, uma linha por registro) em
// um arquivo de log. Falhas de escrita são engolidas.
type FileLogger struct {
	file *os.File
	log  *slog.Logger
}

// NewFileLogger abre (criando se necessário) o arquivo de log de eventos
func NewFileLogger(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("não foi possível criar o diretório de logs: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("não foi possível abrir o arquivo de log: %w", err)
	}

	return &FileLogger{
		file: file,
		log:  slog.New(slog.NewJSONHandler(file, nil)),
	}, nil
}

// IncomingMessage registra uma mensagem recebida
func (l *FileLogger) IncomingMessage(userName, userID, body string) {
	l.record(slog.LevelInfo, eventIncoming, userName, userID, slog.String("conteudo", body))
}

// Authorization registra o resultado da autorização do remetente
func (l *FileLogger) Authorization(userName, userID string, authorized bool) {
	l.record(slog.LevelInfo, eventAuth, userName, userID, slog.Bool("autorizado", authorized))
}

// Validation registra o resultado da validação de alinhamento
func (l *FileLogger) Validation(userName, userID string, valid bool) {
	l.record(slog.LevelInfo, eventValidation, userName, userID, slog.Bool("valida", valid))
}

// ProcessingStep registra uma etapa intermediária do pipeline
func (l *FileLogger) ProcessingStep(userName, userID, step, details string) {
	l.record(slog.LevelInfo, eventProcessing, userName, userID,
		slog.String("etapa", step), slog.String("detalhes", details))
}

// Cooldown registra mudança ou consulta de estado de cooldown
func (l *FileLogger) Cooldown(userName, userID, status string) {
	l.record(slog.LevelInfo, eventCooldown, userName, userID, slog.String("status", status))
}

// OutgoingMessage registra a resposta enviada ao remetente
func (l *FileLogger) OutgoingMessage(userName, userID, text string) {
	l.record(slog.LevelInfo, eventOutgoing, userName, userID, slog.String("conteudo", text))
}

// Error registra uma falha durante o processamento
func (l *FileLogger) Error(userName, userID string, err error) {
	l.record(slog.LevelError, eventError, userName, userID, slog.String("erro", err.Error()))
}

// Close fecha o arquivo de log
func (l *FileLogger) Close() error {
	return l.file.Close()
}

func (l *FileLogger) record(level slog.Level, event, userName, userID string, attrs ...slog.Attr) {
	all := append([]slog.Attr{
		slog.String("id", uuid.New().String()),
		slog.String("usuario", userName),
		slog.String("user_id", userID),
	}, attrs...)
	l.log.LogAttrs(context.Background(), level, event, all...)
}
