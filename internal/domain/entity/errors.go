package entity

import "errors"

// Erros terminais do pipeline de admissão. Os quatro primeiros são
// rejeições silenciosas: nenhuma resposta é enviada ao remetente.
var (
	ErrGroupNotAllowed = errors.New("mensagens de grupo não são permitidas")
	ErrUnauthorized    = errors.New("número não autorizado")
	ErrInCooldown      = errors.New("usuário em período de cooldown")
	ErrNotAligned      = errors.New("mensagem fora do contexto do assistente")
)

// Falhas recuperáveis do backend de geração. São convertidas em uma
// mensagem de desculpas na borda do pipeline, nunca derrubam o processo.
var (
	ErrQuotaExceeded = errors.New("limite de uso da API atingido")
	ErrBackend       = errors.New("falha no serviço de geração de texto")
	ErrMediaDownload = errors.New("falha ao baixar mídia")
)
