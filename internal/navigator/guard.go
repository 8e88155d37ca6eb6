package navigator

import "context"

// Token identifies one update cycle. Only the token handed out by the most
// recent Begin is current.
type Token uint64

// Guard hands out generation tokens and cancels the work of superseded
// generations. It is confined to the goroutine that owns the Navigator.
type Guard struct {
	generation Token
	cancel     context.CancelFunc
}

// Begin starts a new generation. It cancels the context returned by the
// previous Begin and returns the new token with a context derived from
// parent that is canceled when the generation is superseded.
func (g *Guard) Begin(parent context.Context) (Token, context.Context) {
	if g.cancel != nil {
		g.cancel()
	}
	g.generation++
	ctx, cancel := context.WithCancel(parent)
	g.cancel = cancel
	return g.generation, ctx
}

// Current reports whether t belongs to the latest generation.
func (g *Guard) Current(t Token) bool {
	return t == g.generation
}

// Stop cancels the outstanding generation and makes every issued token stale.
func (g *Guard) Stop() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.generation++
}
