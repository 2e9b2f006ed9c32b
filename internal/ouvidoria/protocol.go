package ouvidoria

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

const protocolAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ProtocolGenerator cria protocolos no formato OUV-ANO-XXXXXX.
type ProtocolGenerator struct {
	rand io.Reader
}

// NewProtocolGenerator usa crypto/rand quando src for nil.
func NewProtocolGenerator(src io.Reader) *ProtocolGenerator {
	if src == nil {
		src = rand.Reader
	}
	return &ProtocolGenerator{rand: src}
}

// Next gera um protocolo para o ano de now.
func (g *ProtocolGenerator) Next(now time.Time) (string, error) {
	buf := make([]byte, 6)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("protocolo: %w", err)
	}
	suffix := make([]byte, len(buf))
	for i, b := range buf {
		suffix[i] = protocolAlphabet[int(b)%len(protocolAlphabet)]
	}
	return fmt.Sprintf("OUV-%d-%s", now.Year(), suffix), nil
}
