package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	chatSender   string
	chatInMemory bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from the terminal, one message per line",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		crm, err := openApp(cmd.Context(), cfg, chatInMemory)
		if err != nil {
			return err
		}
		defer crm.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Type a message, or 'exit' to quit.")
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "exit" || line == "quit" {
				break
			}
			if line == "" {
				continue
			}
			fmt.Fprintln(out, crm.processor.HandleMessage(cmd.Context(), chatSender, line))
		}
		fmt.Fprintln(out)
		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSender, "sender", "local", "sender id the conversation is kept under")
	chatCmd.Flags().BoolVar(&chatInMemory, "memory", false, "keep contacts in memory instead of the database")
	rootCmd.AddCommand(chatCmd)
}
