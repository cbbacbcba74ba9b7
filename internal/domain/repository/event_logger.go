package repository

// EventLogger registro estruturado e append-only dos eventos do pipeline.
// Falhas de escrita são engolidas: logar nunca interrompe o processamento.
type EventLogger interface {
	// IncomingMessage registra uma mensagem recebida
	IncomingMessage(userName, userID, body string)

	// Authorization registra o resultado da autorização do remetente
	Authorization(userName, userID string, authorized bool)

	// Validation registra o resultado da validação de alinhamento
	Validation(userName, userID string, valid bool)

	// ProcessingStep registra uma etapa intermediária do pipeline
	ProcessingStep(userName, userID, step, details string)

	// Cooldown registra mudança ou consulta de estado de cooldown
	Cooldown(userName, userID, status string)

	// OutgoingMessage registra a resposta enviada ao remetente
	OutgoingMessage(userName, userID, text string)

	// Error registra uma falha durante o processamento
	Error(userName, userID string, err error)
}
