package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ohtscope/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the active correlation rule set",
}

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active rule set as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, st, err := openSession()
		if err != nil {
			return err
		}
		defer st.Close()

		doc, err := rules.Marshal(sess.Rules().Snapshot())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(doc)
		return err
	},
}

var rulesVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the active rule set version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, st, err := openSession()
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Fprintln(cmd.OutOrStdout(), sess.Rules().Version())
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesVersionCmd)
}
