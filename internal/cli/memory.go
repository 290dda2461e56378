package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mnemod/mnemod/internal/store"
	"github.com/mnemod/mnemod/pkg/record"
)

// cliTiers is the sensitivity context for CLI reads; the CLI runs as the
// store owner, so every tier is visible.
var cliTiers = store.SensitivityContext{AllowPrivate: true, AllowSecret: true}

func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Store, search, and manage memory records",
	}
	cmd.AddCommand(
		memoryPutCmd(),
		memoryGetCmd(),
		memorySearchCmd(),
		memoryListCmd(),
		memoryTimelineCmd(),
		memoryDeleteCmd(),
	)
	return cmd
}

func memoryPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put [content]",
		Short: "Store a memory record",
		Long:  "Store a memory record. Content can be a positional arg or piped via stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := contentArg(args)
			if err != nil {
				return err
			}

			m := record.Memory{
				Content: content,
				Trust:   0.7,
			}
			m.Title, _ = cmd.Flags().GetString("title")
			m.Category, _ = cmd.Flags().GetString("category")
			typ, _ := cmd.Flags().GetString("type")
			m.Type = record.Type(typ)
			m.Importance, _ = cmd.Flags().GetFloat64("importance")
			sens, _ := cmd.Flags().GetString("sensitivity")
			m.Sensitivity = record.Sensitivity(sens)
			m.Tags, _ = cmd.Flags().GetStringSlice("tags")
			m.Project, _ = cmd.Flags().GetString("project")

			if ttl, _ := cmd.Flags().GetDuration("ttl"); ttl > 0 {
				m.ExpiresAt = time.Now().Add(ttl)
			}

			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			id, err := st.Put(cmd.Context(), m)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	cmd.Flags().String("title", "", "Short title")
	cmd.Flags().String("category", "", "Grouping key")
	cmd.Flags().String("type", "", "bugfix, feature, refactor, change, discovery, or decision")
	cmd.Flags().Float64("importance", 0.5, "Importance in [0,1]")
	cmd.Flags().String("sensitivity", "", "public, private, or secret")
	cmd.Flags().StringSliceP("tags", "t", nil, "Tags")
	cmd.Flags().String("project", "", "Project name")
	cmd.Flags().Duration("ttl", 0, "Time to live, e.g. 720h")
	return cmd
}

func memoryGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch a memory by id (counts as an access)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			m, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(m)
		},
	}
}

func memorySearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search with composite scoring",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			limit, _ := cmd.Flags().GetInt("limit")
			category, _ := cmd.Flags().GetString("category")
			results, err := st.Search(cmd.Context(), store.Query{
				Text:        strings.Join(args, " "),
				Category:    category,
				Limit:       limit,
				Sensitivity: cliTiers,
			})
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().String("category", "", "Filter by category")
	return cmd
}

func memoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent memories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			limit, _ := cmd.Flags().GetInt("limit")
			category, _ := cmd.Flags().GetString("category")
			project, _ := cmd.Flags().GetString("project")
			records, err := st.List(cmd.Context(), store.Query{
				Category:    category,
				Project:     project,
				Limit:       limit,
				Sensitivity: cliTiers,
			})
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}
	cmd.Flags().IntP("limit", "l", 50, "Max results")
	cmd.Flags().String("category", "", "Filter by category")
	cmd.Flags().String("project", "", "Filter by project")
	return cmd
}

func memoryTimelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "List memories in chronological order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			q := store.Query{Sensitivity: cliTiers}
			q.SessionID, _ = cmd.Flags().GetString("session")
			q.Limit, _ = cmd.Flags().GetInt("limit")
			if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
				q.CreatedAfter = time.Now().Add(-since)
			}

			records, err := st.Timeline(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}
	cmd.Flags().String("session", "", "Filter by session")
	cmd.Flags().IntP("limit", "l", 100, "Max results")
	cmd.Flags().Duration("since", 0, "Only memories newer than this, e.g. 24h")
	return cmd
}

func memoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a memory by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("deleted", args[0])
			return nil
		},
	}
}

// contentArg reads content from args or, when none are given, from stdin.
func contentArg(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		if s := strings.TrimSpace(string(b)); s != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("content is required (positional arg or stdin)")
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
