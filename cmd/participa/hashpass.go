package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/participadf/ouvidoria/internal/auth"
)

var hashpassCmd = &cobra.Command{
	Use:   "hashpass [senha]",
	Short: "Gera hash Argon2id para o arquivo de seed",
	Long:  "Gera o hash de uma senha para usar em SEED_FILE. Sem argumento, lê a senha da entrada padrão.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := ""
		if len(args) == 1 {
			password = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("ler senha: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if password == "" {
			return errors.New("senha vazia")
		}

		hash, err := auth.Hash(password)
		if err != nil {
			return fmt.Errorf("hash: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
