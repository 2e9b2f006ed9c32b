package util

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// sanitizeRounds limita as passadas sobre entidades aninhadas (&amp;lt;...).
const sanitizeRounds = 4

// SanitizeText remove marcação HTML de textos livres enviados pelo cidadão.
// O resultado é texto puro: entidades são decodificadas e a política roda de
// novo até nada mudar, então marcação escrita como entidade também some.
func SanitizeText(value string) string {
	current := strings.TrimSpace(value)
	for i := 0; i < sanitizeRounds; i++ {
		next := strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(current)))
		if next == current {
			return current
		}
		current = next
	}
	// ainda há marcação depois das passadas: guarda a forma escapada
	return strings.TrimSpace(strictPolicy.Sanitize(current))
}
