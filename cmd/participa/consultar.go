package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/participadf/ouvidoria/internal/client"
)

var consultarCmd = &cobra.Command{
	Use:   "consultar <protocolo>",
	Short: "Consulta o andamento de um protocolo",
	Args:  cobra.ExactArgs(1),
	RunE:  runConsultar,
}

func runConsultar(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	st, err := newClient().Lookup(ctx, args[0])
	if err != nil {
		if client.IsCode(err, "NOT_FOUND") {
			return fmt.Errorf("protocolo %s não encontrado", args[0])
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Protocolo: %s\n", st.Protocolo)
	fmt.Fprintf(out, "Tipo:      %s\n", st.Tipo)
	fmt.Fprintf(out, "Status:    %s\n", st.Status)
	fmt.Fprintf(out, "Aberto em: %s\n", st.CreatedAt.Local().Format("02/01/2006 15:04"))
	if st.Resposta != nil {
		fmt.Fprintf(out, "\nResposta:\n%s\n", *st.Resposta)
	}
	return nil
}
