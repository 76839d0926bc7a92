package doc

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dDoc/cmd/util"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.OperationContext(cmd, bucket)
			defer cancel()

			res, err := bucket.Get(args[0]).Await(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "key=%s, cas=%d\n", res.Key, res.Cas)
			return util.PrintJSON(res.Value)
		},
	}
	upsertCmd = &cobra.Command{
		Use:   "upsert [key] [json]",
		Short: "Inserts or replaces a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cas, _ := cmd.Flags().GetUint64("cas")
			ctx, cancel := util.OperationContext(cmd, bucket)
			defer cancel()

			res, err := bucket.Upsert(args[0], []byte(args[1]), cas).Await(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("upsert successfully, cas=%d\n", res.Cas)
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [key]",
		Short: "Removes a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cas, _ := cmd.Flags().GetUint64("cas")
			ctx, cancel := util.OperationContext(cmd, bucket)
			defer cancel()

			if _, err := bucket.Remove(args[0], cas).Await(ctx); err != nil {
				return err
			}
			fmt.Println("remove successfully")
			return nil
		},
	}
)

func init() {
	upsertCmd.Flags().Uint64("cas", 0, util.WrapString("Only replace the document if it still carries this cas (0 disables the check)"))
	removeCmd.Flags().Uint64("cas", 0, util.WrapString("Only remove the document if it still carries this cas (0 disables the check)"))
}
