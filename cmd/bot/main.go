package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vcspc/whatsapp-gemini-bot/config"
	"github.com/vcspc/whatsapp-gemini-bot/internal/delivery/whatsapp"
	"github.com/vcspc/whatsapp-gemini-bot/internal/infrastructure/eventlog"
	"github.com/vcspc/whatsapp-gemini-bot/internal/infrastructure/gemini"
	"github.com/vcspc/whatsapp-gemini-bot/internal/infrastructure/storage"
	"github.com/vcspc/whatsapp-gemini-bot/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuração inválida: %v", err)
	}

	// `bot link` faz o pareamento via QR code e encerra
	if len(os.Args) > 1 && os.Args[1] == "link" {
		if err := whatsapp.LinkDevice(cfg.WhatsAppDBPath); err != nil {
			log.Fatalf("Erro no pareamento: %v", err)
		}
		return
	}

	eventLog, err := eventlog.NewFileLogger(cfg.LogFilePath)
	if err != nil {
		log.Fatalf("Erro ao abrir o log de eventos: %v", err)
	}
	defer eventLog.Close()

	aiRepo, err := gemini.NewGeminiClient(cfg.GeminiAPIKey, cfg.SystemPrompt, cfg.GeminiTemperature)
	if err != nil {
		log.Fatalf("Erro ao criar o cliente Gemini: %v", err)
	}
	if closer, ok := aiRepo.(io.Closer); ok {
		defer closer.Close()
	}

	userRepo := storage.NewMemoryUserState()
	rateGate := usecase.NewRateGate(cfg.MinTimeBetweenMessages)
	messageUseCase := usecase.NewMessageUseCase(aiRepo, userRepo, rateGate, eventLog, cfg)

	handler, err := whatsapp.NewBotHandler(cfg.WhatsAppDBPath, messageUseCase, userRepo)
	if err != nil {
		log.Fatalf("Erro ao inicializar o bot: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Erro ao executar o bot: %v", err)
	}
}
