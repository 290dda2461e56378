package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mnemod/mnemod/internal/compress"
	"github.com/mnemod/mnemod/internal/consolidate"
)

// maintenanceCmds returns the one-shot maintenance and inspection commands.
func maintenanceCmds() []*cobra.Command {
	return []*cobra.Command{
		purgeCmd(),
		summarizeCmd(),
		consolidateCmd(),
		compressCmd(),
		statsCmd(),
		journalCmd(),
	}
}

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete TTL-expired memories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			purged, err := st.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("purged %d expired records\n", purged)
			return nil
		},
	}
}

func summarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize <category>",
		Short: "Condense a category's old records into one summary (keeps the originals)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			olderThan, _ := cmd.Flags().GetDuration("older-than")
			id, err := st.SummarizeOld(cmd.Context(), args[0], olderThan)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	cmd.Flags().Duration("older-than", 7*24*time.Hour, "Minimum record age")
	return cmd
}

func consolidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate",
		Short: "Run one importance consolidation pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			res, err := consolidate.New(st, consolidate.Config{}).Run(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func compressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compress",
		Short: "Run one compression pass over old, similar memories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			res, err := compress.New(st, compress.Config{}).Run(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			stats, err := st.ReadStats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
}

func journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent journal entries, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			limit, _ := cmd.Flags().GetInt("limit")
			entries, err := st.RecentJournal(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(entries)
		},
	}
	cmd.Flags().IntP("limit", "l", 50, "Max entries")
	return cmd
}
