package whatsapp

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/vcspc/whatsapp-gemini-bot/internal/domain/entity"
	"github.com/vcspc/whatsapp-gemini-bot/internal/domain/repository"
	"github.com/vcspc/whatsapp-gemini-bot/internal/usecase"
)

// maxMessageLength limite de tamanho de uma mensagem do WhatsApp
const maxMessageLength = 65536

// BotHandler adapta eventos do WhatsApp para o pipeline de admissão
type BotHandler struct {
	client         *whatsmeow.Client
	messageUseCase usecase.MessageUseCase
	userRepo       repository.UserStateRepository

	ctx context.Context
}

// NewBotHandler abre a sessão pareada do WhatsApp e cria o handler
func NewBotHandler(
	dbPath string,
	messageUseCase usecase.MessageUseCase,
	userRepo repository.UserStateRepository,
) (*BotHandler, error) {
	container, db, err := openSessionStore(dbPath)
	if err != nil {
		return nil, err
	}

	device, err := container.GetFirstDevice(context.Background())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to get whatsapp device: %w", err)
	}
	if device == nil || device.ID == nil {
		db.Close()
		return nil, fmt.Errorf("nenhum dispositivo pareado, execute 'bot link' primeiro")
	}

	client := whatsmeow.NewClient(device, waLog.Stdout("Client", "WARN", true))

	return &BotHandler{
		client:         client,
		messageUseCase: messageUseCase,
		userRepo:       userRepo,
		ctx:            context.Background(),
	}, nil
}

// openSessionStore abre o banco sqlite da sessão do whatsmeow
func openSessionStore(dbPath string) (*sqlstore.Container, *sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("não foi possível criar o diretório da sessão: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open whatsapp db: %w", err)
	}

	container := sqlstore.NewWithDB(db, "sqlite3", waLog.Stdout("Database", "WARN", true))
	if err := container.Upgrade(context.Background()); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to upgrade whatsapp store: %w", err)
	}

	return container, db, nil
}

// Start conecta ao WhatsApp e bloqueia até o contexto ser cancelado
func (h *BotHandler) Start(ctx context.Context) error {
	h.ctx = ctx
	h.client.AddEventHandler(h.handleEvent)

	if err := h.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to whatsapp: %w", err)
	}

	log.Println("Cliente WhatsApp está pronto!")

	<-ctx.Done()
	log.Println("Encerrando o cliente WhatsApp...")
	h.client.Disconnect()
	return ctx.Err()
}

// handleEvent trata os eventos do whatsmeow
func (h *BotHandler) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		go h.handleMessage(v)
	case *events.Connected:
		log.Println("Conectado ao servidor do WhatsApp")
	case *events.Disconnected:
		log.Println("Desconectado do servidor do WhatsApp")
	case *events.LoggedOut:
		log.Printf("Sessão encerrada pelo WhatsApp (%v), refaça o pareamento com 'bot link'", v.Reason)
	case *events.PushName:
		// Nome do contato mudou; mantém a identidade armazenada atualizada
		h.userRepo.SetName(context.Background(), canonicalID(v.JID), v.NewPushName)
	}
}

// handleMessage converte e processa uma mensagem recebida
func (h *BotHandler) handleMessage(evt *events.Message) {
	if evt.Info.IsFromMe {
		return
	}

	body, hasMedia, kind, download := h.extractContent(evt)
	if body == "" && !hasMedia {
		// Tipo de mensagem não suportado (sticker, localização, etc.)
		return
	}

	chatJID := evt.Info.Chat

	// O indicador de digitação só aparece depois da admissão: mensagens
	// rejeitadas não produzem nenhum efeito visível para o remetente
	admitted := false
	inbound := usecase.InboundMessage{
		SenderID:      canonicalSenderID(evt.Info),
		Body:          body,
		HasMedia:      hasMedia,
		MediaKind:     kind,
		Timestamp:     evt.Info.Timestamp,
		DownloadMedia: download,
		ResolveContactName: func(ctx context.Context) (string, error) {
			return h.resolveContactName(ctx, evt.Info)
		},
		OnAdmitted: func() {
			admitted = true
			_ = h.client.SendChatPresence(h.ctx, chatJID, types.ChatPresenceComposing, types.ChatPresenceMediaText)
		},
	}

	reply, err := h.messageUseCase.ProcessMessage(h.ctx, inbound)

	if admitted {
		_ = h.client.SendChatPresence(h.ctx, chatJID, types.ChatPresencePaused, types.ChatPresenceMediaText)
	}

	// Rejeições são silenciosas: o pipeline já registrou o motivo
	if err != nil || reply == "" {
		return
	}

	h.send(chatJID, reply)
}

// extractContent extrai texto e mídia da mensagem recebida
func (h *BotHandler) extractContent(evt *events.Message) (string, bool, entity.MediaKind, func(context.Context) (*entity.MediaPayload, error)) {
	msg := evt.Message
	if msg == nil {
		return "", false, "", nil
	}

	if text := msg.GetConversation(); text != "" {
		return text, false, "", nil
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText(), false, "", nil
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption(), true, entity.MediaImage, h.downloader(img, entity.MediaImage, img.GetMimetype())
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return vid.GetCaption(), true, entity.MediaVideo, h.downloader(vid, entity.MediaVideo, vid.GetMimetype())
	}
	if aud := msg.GetAudioMessage(); aud != nil {
		kind := entity.MediaAudio
		if aud.GetPTT() {
			kind = entity.MediaVoiceNote
		}
		return "", true, kind, h.downloader(aud, kind, aud.GetMimetype())
	}

	return "", false, "", nil
}

// downloader cria o callback de download de mídia para o pipeline
func (h *BotHandler) downloader(msg whatsmeow.DownloadableMessage, kind entity.MediaKind, mimeType string) func(context.Context) (*entity.MediaPayload, error) {
	return func(ctx context.Context) (*entity.MediaPayload, error) {
		data, err := h.client.Download(ctx, msg)
		if err != nil {
			return nil, err
		}
		return &entity.MediaPayload{Kind: kind, MimeType: mimeType, Data: data}, nil
	}
}

// resolveContactName busca o nome do contato na agenda sincronizada, com o
// push name da própria mensagem como alternativa
func (h *BotHandler) resolveContactName(ctx context.Context, info types.MessageInfo) (string, error) {
	contact, err := h.client.Store.Contacts.GetContact(ctx, info.Sender)
	if err == nil {
		if contact.FullName != "" {
			return contact.FullName, nil
		}
		if contact.PushName != "" {
			return contact.PushName, nil
		}
	}
	if info.PushName != "" {
		return info.PushName, nil
	}
	return "", err
}

// send envia a resposta, dividida em partes quando excede o limite
func (h *BotHandler) send(jid types.JID, text string) {
	for _, chunk := range splitMessage(text, maxMessageLength) {
		_, err := h.client.SendMessage(h.ctx, jid, &waE2E.Message{
			Conversation: proto.String(chunk),
		})
		if err != nil {
			log.Printf("Erro ao enviar mensagem: %v", err)
		}
	}
}

// canonicalSenderID normaliza o JID do chat para o identificador usado nas
// listas de autorização. Com endereçamento LID o número real fica em
// SenderAlt.
func canonicalSenderID(info types.MessageInfo) string {
	jid := info.Chat
	if jid.Server == types.HiddenUserServer && info.SenderAlt.User != "" {
		jid = info.SenderAlt
	}
	return canonicalID(jid)
}

// canonicalID converte um JID para o formato legado usuario@c.us /
// grupo@g.us, a forma familiar para quem configura as listas
func canonicalID(jid types.JID) string {
	switch jid.Server {
	case types.DefaultUserServer, types.LegacyUserServer:
		return jid.User + "@c.us"
	case types.GroupServer:
		return jid.User + "@g.us"
	default:
		return jid.User + "@" + jid.Server
	}
}

// splitMessage divide o texto em partes que cabem no limite do WhatsApp
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		end := maxLen
		if end > len(text) {
			end = len(text)
		}
		// Prefere quebrar em uma nova linha; senão recua até o início
		// de uma runa para nunca cortar um caractere multi-byte
		if end < len(text) {
			if idx := strings.LastIndex(text[:end], "\n"); idx > end/2 {
				end = idx + 1
			} else {
				for end > 0 && !utf8.RuneStart(text[end]) {
					end--
				}
			}
		}
		chunks = append(chunks, text[:end])
		text = text[end:]
	}
	return chunks
}
