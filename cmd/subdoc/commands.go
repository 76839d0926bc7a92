package subdoc

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dDoc/cmd/util"
	"github.com/ValentinKolb/dDoc/lib/subdoc"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// itemOutput is the printed form of one result item
type itemOutput struct {
	Spec  string          `json:"spec"`
	Ok    bool            `json:"ok"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

func runLookup(cmd *cobra.Command, args []string) error {
	specs, err := ParseSpecs(args[1:])
	if err != nil {
		return err
	}

	ctx, cancel := util.OperationContext(cmd, bucket)
	defer cancel()

	res, err := bucket.LookupIn(args[0], specs...).Await(ctx)
	if err != nil {
		return err
	}
	return printResult(specs, res)
}

func runMutate(cmd *cobra.Command, args []string) error {
	specs, err := ParseSpecs(args[1:])
	if err != nil {
		return err
	}
	cas, _ := cmd.Flags().GetUint64("cas")

	ctx, cancel := util.OperationContext(cmd, bucket)
	defer cancel()

	res, err := bucket.MutateIn(args[0], cas, specs...).Await(ctx)
	if err != nil {
		return err
	}
	return printResult(specs, res)
}

func printResult(specs []subdoc.Spec, res *subdoc.Result) error {
	fmt.Printf("key=%s, cas=%d\n", res.Key, res.Cas)
	return util.PrintJSON(lo.Map(res.Items, func(item subdoc.Item, i int) itemOutput {
		out := itemOutput{Ok: item.Ok(), Value: item.Value, Error: item.Err}
		if i < len(specs) {
			out.Spec = specs[i].String()
		}
		return out
	}))
}
