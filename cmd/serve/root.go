package serve

import (
	"fmt"
	"strings"

	cmdUtil "github.com/ValentinKolb/dDoc/cmd/util"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/ValentinKolb/dDoc/rpc/server"
	"github.com/ValentinKolb/dDoc/rpc/transport"
	"github.com/ValentinKolb/dDoc/rpc/transport/tcp"
	"github.com/ValentinKolb/dDoc/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dDoc server",
		Long:    `Start the dDoc server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DDOC_<flag> (e.g. DDOC_SEARCH_BATCH_SIZE=128)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "buckets"
	ServeCmd.PersistentFlags().String(key, "default", cmdUtil.WrapString("Comma-separated list of buckets to serve. Every bucket gets its own in-memory document store"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("Timeout in seconds for reading and writing a frame, 0 disables the timeout"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, common.DefaultWorkersPerConn, cmdUtil.WrapString("Maximum number of requests processed in parallel per connection"))

	key = "search-batch-size"
	ServeCmd.PersistentFlags().Int(key, common.DefaultSearchBatchSize, cmdUtil.WrapString("Number of hits sent per search frame"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the Prometheus metrics endpoint (e.g. :9100), empty disables it"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:11210", cmdUtil.WrapString("The address on which the server will listen (e.g. localhost:11210, /tmp/ddoc.sock, ...)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse buckets
	buckets := cmdUtil.SplitList(viper.GetString("buckets"))
	if len(buckets) == 0 {
		return fmt.Errorf("at least one bucket is required")
	}
	if len(lo.Uniq(buckets)) != len(buckets) {
		return fmt.Errorf("duplicate buckets in %q", viper.GetString("buckets"))
	}
	serveCmdConfig.Buckets = buckets

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Transport = viper.GetString("transport")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.WorkersPerConn = viper.GetInt("workers-per-conn")
	serveCmdConfig.SearchBatchSize = viper.GetInt("search-batch-size")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.WorkersPerConn <= 0 {
		return fmt.Errorf("workers-per-conn must be positive, got %d", serveCmdConfig.WorkersPerConn)
	}
	if serveCmdConfig.SearchBatchSize <= 0 {
		return fmt.Errorf("search-batch-size must be positive, got %d", serveCmdConfig.SearchBatchSize)
	}
	return nil
}

// run starts the dDoc server
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch serveCmdConfig.Transport {
	case "tcp":
		t = tcp.NewTCPDefaultServerTransport(serveCmdConfig.WorkersPerConn)
	case "unix":
		t = unix.NewUnixDefaultServerTransport(serveCmdConfig.WorkersPerConn)
	default:
		return fmt.Errorf("invalid transport %s", serveCmdConfig.Transport)
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	return serv.Serve()
}

// initConfig reads ENV variables and .env files if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("ddoc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
