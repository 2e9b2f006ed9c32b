package ouvidoria

import (
	"context"
	"strings"
)

// Analyzer faz a triagem automática do texto recebido.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*Analysis, error)
}

// KeywordAnalyzer é a análise local da IZA enquanto a integração com a
// Ouvidoria-Geral não está disponível.
type KeywordAnalyzer struct{}

var (
	negativeWords = []string{"ruim", "péssimo", "buraco", "demora", "lixo"}
	positiveWords = []string{"ótimo", "excelente", "parabéns", "bom"}
)

// Analyze classifica o sentimento por palavras-chave.
func (KeywordAnalyzer) Analyze(ctx context.Context, text string) (*Analysis, error) {
	lower := strings.ToLower(text)

	result := &Analysis{
		Service:    "IZA_AI_V1",
		Sentiment:  "neutro",
		Confidence: 0.5,
		Topics:     []string{"geral"},
	}

	switch {
	case containsAny(lower, negativeWords):
		result.Sentiment = "negativo"
		result.Confidence = 0.9
	case containsAny(lower, positiveWords):
		result.Sentiment = "positivo"
		result.Confidence = 0.95
	}

	if strings.Contains(lower, "buraco") {
		result.Topics = []string{"infraestrutura", "atendimento"}
	}

	return result, nil
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
