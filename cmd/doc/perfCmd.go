package doc

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dDoc/cmd/util"
	"github.com/ValentinKolb/dDoc/lib/future"
	"github.com/ValentinKolb/dDoc/lib/search"
	"github.com/ValentinKolb/dDoc/lib/subdoc"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/rcrowley/go-metrics"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dDoc servers",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)

	// latency of every single operation, per test
	perfRegistry = metrics.NewRegistry()
)

// perfTest is one benchmark of the perf command
type perfTest struct {
	name    string
	prepare func(keys []string) // runs before the timer starts
	op      func(key string, i int) error
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. upsert,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the document for the upsert-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = util.SplitList(viper.GetString("skip"))

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for dDoc servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	config := bucket.Config()
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	largeValue := fmt.Sprintf(`{"blob":%q}`, strings.Repeat("x", perfLargeValueSizeKB*1024))
	seed := func(keys []string) {
		for _, k := range keys {
			if err := await(bucket.Upsert(k, []byte(`{"n":0,"tags":[],"city":"Berlin"}`), 0)); err != nil {
				log.Printf("(seed) - error upserting key: %v\n", err)
			}
		}
	}

	tests := []perfTest{
		{name: "upsert", op: func(key string, _ int) error {
			return await(bucket.Upsert(key, []byte(`{"n":0}`), 0))
		}},
		{name: "upsert-large", op: func(key string, _ int) error {
			return await(bucket.Upsert(key, []byte(largeValue), 0))
		}},
		{name: "get", prepare: seed, op: func(key string, _ int) error {
			return await(bucket.Get(key))
		}},
		{name: "lookup-in", prepare: seed, op: func(key string, _ int) error {
			return await(bucket.LookupIn(key, subdoc.Get("n"), subdoc.Exists("tags")))
		}},
		{name: "mutate-in", prepare: seed, op: func(key string, _ int) error {
			return await(bucket.MutateIn(key, 0, subdoc.Counter("n", 1, false)))
		}},
		{name: "search", prepare: seed, op: func(_ string, _ int) error {
			req, err := bucket.SearchQuery("perf", search.NewMatchQuery("berlin").SetField("city"), search.NewParams().SetLimit(10))
			if err != nil {
				return err
			}
			_, err = req.Execute(context.Background())
			return err
		}},
		{name: "mixed", prepare: seed, op: func(key string, i int) error {
			switch i % 4 {
			case 0:
				return await(bucket.Upsert(key, []byte(`{"n":0}`), 0))
			case 1:
				return await(bucket.Get(key))
			case 2:
				return await(bucket.MutateIn(key, 0, subdoc.Counter("n", 1, true)))
			default:
				return await(bucket.LookupIn(key, subdoc.Get("n")))
			}
		}},
	}

	// Create results map
	results := make(map[string]testing.BenchmarkResult)
	for _, test := range tests {
		result := runPerfTest(test)
		results[test.name] = result
		printResult(test.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

func runPerfTest(test perfTest) testing.BenchmarkResult {
	timer := metrics.GetOrRegisterTimer(test.name, perfRegistry)

	return testing.Benchmark(func(b *testing.B) {
		if lo.Contains(perfSkip, test.name) {
			return
		}

		// prepare keys
		getKey, keys := getKeys(test.name)
		if test.prepare != nil {
			test.prepare(keys)
		}

		// cleanup
		b.Cleanup(func() {
			for _, k := range keys {
				// documents of the write tests may not exist
				_ = await(bucket.Remove(k, 0))
			}
		})

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := test.op(getKey(counter), counter); err != nil {
					log.Printf("(%s) - error: %v\n", test.name, err)
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// await blocks until ft settled, bounded by the operation timeout
func await[T any](ft *future.Future[T]) error {
	ctx, cancel := context.WithTimeout(context.Background(), bucket.Config().OperationTimeout+time.Second)
	defer cancel()
	_, err := ft.Await(ctx)
	return err
}

// getKeys creates the test keys and a function to pick one by index (with wraparound)
func getKeys(prefix string) (func(int) string, []string) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}
	return func(i int) string { return keys[i%perfKeySpread] }, keys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// latency percentiles over all runs of the benchmark
	ps := metrics.GetOrRegisterTimer(test, perfRegistry).Snapshot().Percentiles([]float64{0.5, 0.99})

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50 %s\tp99 %s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec, time.Duration(ps[0]), time.Duration(ps[1]))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P99", "Skipped",
		"Endpoints", "Bucket", "OperationTimeout", "Serializer",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}
		ps := metrics.GetOrRegisterTimer(test, perfRegistry).Snapshot().Percentiles([]float64{0.5, 0.99})

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			time.Duration(ps[0]).String(),
			time.Duration(ps[1]).String(),
			skipped,
			strings.Join(config.Endpoints, ";"),
			config.Bucket,
			config.OperationTimeout.String(),
			viper.GetString("serializer"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
