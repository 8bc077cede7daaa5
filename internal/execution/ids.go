package execution

import (
	"fmt"

	"github.com/google/uuid"
)

// UUIDGenerator issues random IDs for live and paper runs.
type UUIDGenerator struct{}

func (UUIDGenerator) NextOrderID() string { return uuid.NewString() }
func (UUIDGenerator) NextTradeID() string { return uuid.NewString() }

// SeqGenerator issues deterministic IDs for backtests: the same run
// always produces the same order and trade IDs.
type SeqGenerator struct {
	prefix string
	orders int
	trades int
}

func NewSeqGenerator(prefix string) *SeqGenerator { return &SeqGenerator{prefix: prefix} }

func (g *SeqGenerator) NextOrderID() string {
	g.orders++
	return fmt.Sprintf("%s-ord-%d", g.prefix, g.orders)
}

func (g *SeqGenerator) NextTradeID() string {
	g.trades++
	return fmt.Sprintf("%s-trd-%d", g.prefix, g.trades)
}
