package subdoc

import (
	"github.com/ValentinKolb/dDoc/cmd/util"
	"github.com/ValentinKolb/dDoc/rpc/client"
	"github.com/spf13/cobra"
)

var (
	bucket *client.Bucket

	// SubdocCommands represents the sub-document command group
	SubdocCommands = &cobra.Command{
		Use:                "subdoc",
		Short:              "Perform sub-document operations",
		Long:               "Read or change parts of a document. Specs are written as OP[+]:PATH[=JSON], a + after the operation creates missing parents.",
		PersistentPreRunE:  setupBucket,
		PersistentPostRunE: closeBucket,
	}

	// lookupCmd represents the lookup command
	lookupCmd = &cobra.Command{
		Use:     "lookup [key] [spec...]",
		Short:   "Read several paths of a document",
		Example: "  ddoc subdoc lookup user::1 get:name exists:address.city get:tags[-1]",
		Args:    cobra.MinimumNArgs(2),
		RunE:    runLookup,
	}

	// mutateCmd represents the mutate command
	mutateCmd = &cobra.Command{
		Use:     "mutate [key] [spec...]",
		Short:   "Atomically change several paths of a document",
		Example: "  ddoc subdoc mutate user::1 'upsert+:address.city=\"Berlin\"' 'push_last:tags=[\"admin\"]' counter:visits=1",
		Args:    cobra.MinimumNArgs(2),
		RunE:    runMutate,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add subcommands to subdoc command
	SubdocCommands.AddCommand(lookupCmd)
	SubdocCommands.AddCommand(mutateCmd)

	// Add common RPC flags to the subdoc command
	util.SetupRPCClientFlags(SubdocCommands)

	// Add flags specific to mutate
	mutateCmd.Flags().Uint64("cas", 0, util.WrapString("Only apply the mutations if the document still carries this cas (0 disables the check)"))
}

// setupBucket connects the bucket client
func setupBucket(cmd *cobra.Command, _ []string) (err error) {
	bucket, err = util.OpenBucket(cmd)
	return err
}

func closeBucket(_ *cobra.Command, _ []string) error {
	if bucket == nil {
		return nil
	}
	return bucket.Close()
}
