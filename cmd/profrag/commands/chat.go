package commands

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"profrag/internal/client"
	"profrag/internal/tui"
)

var chatURL string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a running server from the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		if chatURL != "" {
			cfg.Client.URL = chatURL
		}
		c, err := client.New(client.Config{
			URL:     cfg.Client.URL,
			Timeout: secs(cfg.Client.TimeoutSecs),
		})
		if err != nil {
			return err
		}
		m := tui.New(cmd.Context(), c, cfg.Client.URL)
		_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatURL, "url", "", "chat endpoint (overrides client.url)")
	rootCmd.AddCommand(chatCmd)
}
