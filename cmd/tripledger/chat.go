package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/susu3304/tripledger/internal/lifecycle"
)

var chatSender string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Fill in a draft from the terminal against the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		svc, err := newService(cfg, store, logger)
		if err != nil {
			return err
		}
		return runChat(cmd, svc, os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSender, "sender", "local", "sender id the draft belongs to")
}

func runChat(cmd *cobra.Command, svc *lifecycle.Service, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Draft console for %s. Type status to see the draft, quit to leave.\n", chatSender)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			return nil
		}
		for _, msg := range svc.HandleTurn(cmd.Context(), chatSender, line) {
			fmt.Fprintln(out, msg)
		}
	}
}
