// Command participa envia e consulta manifestações pela API do portal.
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/participadf/ouvidoria/internal/client"
)

var (
	apiURL  string
	timeout time.Duration
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "participa",
	Short: "Cliente de linha de comando da Ouvidoria Participa DF",
	Long: `Envia manifestações (texto, anexo ou gravação) e consulta protocolos
na API da ouvidoria.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(level)
	},
}

func init() {
	defaultAPI := os.Getenv("PARTICIPA_API")
	if defaultAPI == "" {
		defaultAPI = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultAPI, "endereço da API (ou PARTICIPA_API)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "tempo máximo da operação")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log detalhado")

	rootCmd.AddCommand(enviarCmd, consultarCmd, hashpassCmd)
}

func newClient() *client.Client {
	return client.New(apiURL, &http.Client{Timeout: timeout})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
