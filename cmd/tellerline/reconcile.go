package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Finish session updates left staged by a crash",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		applied, err := st.ApplyPendingUpdates(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("reconciled %d session(s)\n", applied)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
