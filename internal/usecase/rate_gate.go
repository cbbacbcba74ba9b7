package usecase

import (
	"sync"
	"time"
)

// DefaultMinInterval espaçamento mínimo entre duas admissões
const DefaultMinInterval = 2 * time.Second

// RateGate portão de intervalo mínimo entre mensagens admitidas, único
// para o processo. Uma chamada tardia espera o restante do intervalo em
// vez de rejeitar.
type RateGate struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
}

// NewRateGate cria o portão com o intervalo informado (2s se zero)
func NewRateGate(interval time.Duration) *RateGate {
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	return &RateGate{interval: interval}
}

// Admit bloqueia o chamador até o intervalo mínimo ter decorrido desde a
// última admissão e então registra o instante atual. O mutex é mantido
// durante a espera: admissões concorrentes saem serializadas.
func (g *RateGate) Admit() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if !g.last.IsZero() {
		if wait := g.interval - now.Sub(g.last); wait > 0 {
			time.Sleep(wait)
			now = time.Now()
		}
	}
	g.last = now
}
