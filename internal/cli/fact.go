package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemod/mnemod/internal/store"
	"github.com/mnemod/mnemod/pkg/record"
)

func factCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fact",
		Short: "Store and query subject-predicate-object facts",
	}
	cmd.AddCommand(factPutCmd(), factQueryCmd())
	return cmd
}

func factPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <subject> <predicate> [object]",
		Short: "Store a fact",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := record.Fact{Subject: args[0], Predicate: args[1]}
			if len(args) == 3 {
				f.Object = args[2]
			}
			f.Provenance, _ = cmd.Flags().GetString("provenance")

			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			id, err := st.PutFact(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	cmd.Flags().String("provenance", "cli", "Where the fact came from")
	return cmd
}

func factQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query facts by subject, predicate, object, or provenance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			var q store.FactQuery
			q.Subject, _ = cmd.Flags().GetString("subject")
			q.Predicate, _ = cmd.Flags().GetString("predicate")
			q.Object, _ = cmd.Flags().GetString("object")
			q.Provenance, _ = cmd.Flags().GetString("provenance")
			q.Limit, _ = cmd.Flags().GetInt("limit")

			facts, err := st.QueryFacts(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(facts)
		},
	}
	cmd.Flags().StringP("subject", "s", "", "Filter by subject")
	cmd.Flags().StringP("predicate", "p", "", "Filter by predicate")
	cmd.Flags().StringP("object", "o", "", "Filter by object")
	cmd.Flags().String("provenance", "", "Filter by provenance")
	cmd.Flags().IntP("limit", "l", 50, "Max results")
	return cmd
}
