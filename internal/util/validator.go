package util

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// ValidateEmail retorna erro para e-mails inválidos.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email obrigatório")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("email inválido")
	}
	return nil
}

// ValidatePassword verifica requisitos mínimos de senha.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("senha deve ter pelo menos 8 caracteres")
	}
	return nil
}

// RequireString garante string não vazia.
func RequireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(field + " obrigatório")
	}
	return nil
}

// DigitsOnly remove tudo que não for dígito.
func DigitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateCPF exige 11 dígitos, com ou sem pontuação.
func ValidateCPF(cpf string) error {
	if len(DigitsOnly(cpf)) != 11 {
		return errors.New("cpf deve ter 11 dígitos")
	}
	return nil
}

// FormatCPF devolve o CPF no formato 000.000.000-00; entradas inválidas voltam sem alteração.
func FormatCPF(cpf string) string {
	d := DigitsOnly(cpf)
	if len(d) != 11 {
		return strings.TrimSpace(cpf)
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

// ValidateDate aceita datas no formato AAAA-MM-DD.
func ValidateDate(value string) error {
	if _, err := time.Parse(time.DateOnly, strings.TrimSpace(value)); err != nil {
		return errors.New("data deve estar no formato AAAA-MM-DD")
	}
	return nil
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidateColor aceita cores no formato #RRGGBB.
func ValidateColor(value string) error {
	if !hexColor.MatchString(strings.TrimSpace(value)) {
		return errors.New("cor deve estar no formato #RRGGBB")
	}
	return nil
}
