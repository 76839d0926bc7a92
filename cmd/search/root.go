package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/dDoc/cmd/util"
	"github.com/ValentinKolb/dDoc/lib/search"
	"github.com/ValentinKolb/dDoc/rpc/client"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	bucket *client.Bucket

	// SearchCmd runs a search query against a bucket
	SearchCmd = &cobra.Command{
		Use:   "search [index] [query]",
		Short: "Run a search query",
		Long: `Run a search query and print one hit per line, followed by the metadata.
The query is either a query string (e.g. '+city:berlin age:<30') or a JSON query object.`,
		Example: `  ddoc search people '+city:berlin age:<30' --limit 5 --fields name,age
  ddoc search people '{"match":"berlin","field":"city"}' --term-facet tags:5`,
		Args:               cobra.ExactArgs(2),
		PersistentPreRunE:  setupBucket,
		PersistentPostRunE: closeBucket,
		RunE:               runSearch,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags
	util.SetupRPCClientFlags(SearchCmd)

	// Add search flags
	key := "limit"
	SearchCmd.Flags().Int(key, 10, util.WrapString("Maximum number of hits"))
	key = "skip"
	SearchCmd.Flags().Int(key, 0, util.WrapString("Number of hits to skip"))
	key = "explain"
	SearchCmd.Flags().Bool(key, false, util.WrapString("Return the score explanation of every hit"))
	key = "fields"
	SearchCmd.Flags().String(key, "", util.WrapString("Comma-separated list of stored fields to return (* for all)"))
	key = "term-facet"
	SearchCmd.Flags().StringSlice(key, nil, util.WrapString("Term facet as FIELD[:SIZE], may be repeated"))
	key = "meta-only"
	SearchCmd.Flags().Bool(key, false, util.WrapString("Only print the metadata"))
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

func runSearch(cmd *cobra.Command, args []string) error {
	query, err := ParseQuery(args[1])
	if err != nil {
		return err
	}
	params, err := paramsFromFlags()
	if err != nil {
		return err
	}

	req, err := bucket.SearchQuery(args[0], query, params)
	if err != nil {
		return err
	}

	// the engine bounds the gap between two frames, the stream itself may take longer
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	metaOnly := viper.GetBool("meta-only")
	for row, err := range req.Rows(ctx) {
		if err != nil {
			return err
		}
		if metaOnly {
			continue
		}
		line, err := json.Marshal(row)
		if err != nil {
			return err
		}
		fmt.Println(string(line))
	}

	total, _ := req.TotalHits()
	took, _ := req.Took()
	maxScore, _ := req.MaxScore()
	fmt.Fprintf(os.Stderr, "total_hits=%d, max_score=%g, took=%s\n", total, maxScore, took)

	if facets, _ := req.Facets(); len(facets) > 0 {
		return util.PrintJSON(facets)
	}
	return nil
}

// ParseQuery turns the query argument into a search query. JSON objects are
// sent as they are, everything else is a query string.
func ParseQuery(arg string) (any, error) {
	trimmed := strings.TrimSpace(arg)
	if !strings.HasPrefix(trimmed, "{") {
		return arg, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, fmt.Errorf("query looks like JSON but is invalid: %w", err)
	}
	return search.NewRawQuery(obj), nil
}

// paramsFromFlags builds the search params from the flags that were set
func paramsFromFlags() (*search.Params, error) {
	opts := map[string]any{
		"limit":   viper.GetInt("limit"),
		"skip":    viper.GetInt("skip"),
		"explain": viper.GetBool("explain"),
	}
	if fields := util.SplitList(viper.GetString("fields")); len(fields) > 0 {
		opts["fields"] = fields
	}

	facets, err := ParseTermFacets(viper.GetStringSlice("term-facet"))
	if err != nil {
		return nil, err
	}
	if len(facets) > 0 {
		opts["facets"] = facets
	}
	return search.ParamsFromOptions(opts)
}

// ParseTermFacets parses FIELD[:SIZE] definitions, the facets are named after the field
func ParseTermFacets(defs []string) (map[string]search.Facet, error) {
	facets := make(map[string]search.Facet, len(defs))
	for _, def := range defs {
		field, rawSize, hasSize := strings.Cut(def, ":")
		if field == "" {
			return nil, fmt.Errorf("invalid term facet %q: missing field", def)
		}
		size := 10
		if hasSize {
			var err error
			if size, err = cast.ToIntE(rawSize); err != nil || size <= 0 {
				return nil, fmt.Errorf("invalid term facet %q: size must be a positive integer", def)
			}
		}
		facets[field] = search.NewTermFacet(field, size)
	}
	return facets, nil
}
