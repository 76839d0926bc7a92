package doc

import (
	"github.com/ValentinKolb/dDoc/cmd/util"
	"github.com/ValentinKolb/dDoc/rpc/client"
	"github.com/spf13/cobra"
)

var (
	bucket *client.Bucket

	// DocumentCommands represents the document command group
	DocumentCommands = &cobra.Command{
		Use:                "doc",
		Short:              "Perform document operations",
		PersistentPreRunE:  setupBucket,
		PersistentPostRunE: closeBucket,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the document command
	util.SetupRPCClientFlags(DocumentCommands)

	// Add subcommands
	DocumentCommands.AddCommand(getCmd)
	DocumentCommands.AddCommand(upsertCmd)
	DocumentCommands.AddCommand(removeCmd)
	DocumentCommands.AddCommand(perfTestCmd)
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
