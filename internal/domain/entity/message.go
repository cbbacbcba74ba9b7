package entity

// DefaultUserName nome exibido até que o contato do remetente seja resolvido
const DefaultUserName = "Usuário"

// Role papel de um turno no diálogo
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn um turno do diálogo; a ordem de inserção é replayada
// ao backend como contexto da conversa
type ConversationTurn struct {
	Role Role
	Text string
}

// MediaKind tipo de mídia anexada a uma mensagem recebida
type MediaKind string

const (
	MediaImage     MediaKind = "image"
	MediaVideo     MediaKind = "video"
	MediaAudio     MediaKind = "audio"
	MediaVoiceNote MediaKind = "ptt"
)

// MediaPayload conteúdo bruto de uma mídia baixada do transporte
type MediaPayload struct {
	Kind     MediaKind
	MimeType string
	Data     []byte
}
