package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newEntriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "entries FILE",
		Short: "List the entry directory of a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			format, dir, err := a.pipeline().Entries(f)
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "# %s, %d entries, %d bytes\n", format, dir.Len(), dir.Size())
			fmt.Fprintln(tw, "NAME\tOFFSET\tLENGTH\tSIZE\tENCODING\tTYPE\tSTATUS")
			for _, e := range dir.Entries() {
				status := "ok"
				if !dir.InRange(e) {
					status = "out of range"
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\t%s\n", e.Name, e.Offset, e.Length, e.Size, e.Encoding, e.Type, status)
			}
			return tw.Flush()
		},
	}
}

func newCatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat FILE ENTRY",
		Short: "Write the decoded bytes of one entry to stdout",
		Long: `cat decodes one entry of a container and writes it to stdout.

ENTRY may be given percent-encoded or not; both spellings are tried.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			data, err := a.pipeline().ReadEntry(f, args[1])
			if err != nil {
				return fmt.Errorf("reading %s from %s: %w", args[1], args[0], err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
