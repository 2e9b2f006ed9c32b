package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCPFHelpers(t *testing.T) {
	assert.Equal(t, "11111111111", DigitsOnly("111.111.111-11"))
	assert.Equal(t, "111.111.111-11", FormatCPF("11111111111"))
	assert.Equal(t, "123", FormatCPF(" 123 "))
	assert.NoError(t, ValidateCPF("111.111.111-11"))
	assert.Error(t, ValidateCPF("111.111"))
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name string
		err  error
		ok   bool
	}{
		{"email ok", ValidateEmail("maria@df.gov.br"), true},
		{"email ruim", ValidateEmail("maria"), false},
		{"email vazio", ValidateEmail(" "), false},
		{"data ok", ValidateDate("2024-03-01"), true},
		{"data ruim", ValidateDate("01/03/2024"), false},
		{"cor ok", ValidateColor("#004A99"), true},
		{"cor ruim", ValidateColor("azul"), false},
		{"senha curta", ValidatePassword("123"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.ok {
				assert.NoError(t, tc.err)
			} else {
				assert.Error(t, tc.err)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "Buraco na pista", SanitizeText("<b>Buraco</b> na pista<script>alert(1)</script>"))
	assert.Equal(t, "Rua A & B", SanitizeText("Rua A & B"))
	assert.Equal(t, "João's", SanitizeText("João's"))

	// marcação escrita como entidade não pode voltar como HTML
	assert.Equal(t, "", SanitizeText("&lt;script&gt;alert(1)&lt;/script&gt; &lt;img src=x onerror=alert(2)&gt;"))
	assert.Equal(t, "Olá", SanitizeText("&lt;b&gt;Olá&lt;/b&gt;"))
	assert.NotContains(t, SanitizeText("&amp;lt;img src=x onerror=alert(3)&amp;gt;ok"), "<img")
}
