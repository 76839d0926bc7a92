package util

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ValentinKolb/dDoc/rpc/client"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/ValentinKolb/dDoc/rpc/serializer"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds the bucket connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "connection-string"
	cmd.PersistentFlags().String(key, "", WrapString("Connection string (e.g. ddoc://host1:11210,host2/bucket?operation_timeout=2.5). Overrides endpoints, bucket and the timeouts"))

	key = "endpoints"
	cmd.PersistentFlags().String(key, "localhost:11210", WrapString("Comma-separated list of server endpoints, tried in order (host:port or unix:/path/to/socket)"))

	key = "bucket"
	cmd.PersistentFlags().String(key, "default", WrapString("Name of the bucket"))

	key = "operation-timeout"
	cmd.PersistentFlags().Duration(key, common.DefaultOperationTimeout, WrapString("Deadline of a single operation, for searches the maximum gap between two result frames"))

	key = "connect-timeout"
	cmd.PersistentFlags().Duration(key, common.DefaultConnectTimeout, WrapString("Deadline for establishing the connection"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Level of the client logs (debug, info, warn, error)"))
}

// InitClientConfig loads .env files and binds DDOC_* environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("ddoc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() (common.ClientConfig, error) {
	if cs := viper.GetString("connection-string"); cs != "" {
		parsed, err := common.ParseConnectionString(cs)
		if err != nil {
			return common.ClientConfig{}, err
		}
		return parsed.ClientConfig()
	}

	conf := common.ClientConfig{
		Endpoints:        SplitList(viper.GetString("endpoints")),
		Bucket:           viper.GetString("bucket"),
		OperationTimeout: viper.GetDuration("operation-timeout"),
		ConnectTimeout:   viper.GetDuration("connect-timeout"),
	}
	return conf.WithDefaults(), nil
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// OpenBucket binds the flags of cmd, creates the bucket client and waits for
// the connection
func OpenBucket(cmd *cobra.Command) (*client.Bucket, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return nil, err
	}

	config, err := GetClientConfig()
	if err != nil {
		return nil, err
	}
	s, err := GetSerializer()
	if err != nil {
		return nil, err
	}

	b, err := client.NewBucket(config, s)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), config.ConnectTimeout+time.Second)
	defer cancel()
	if _, err := b.Connect().Await(ctx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("connect to bucket %s: %w", config.Bucket, err)
	}
	return b, nil
}

// OperationContext returns a context for one blocking wait on a future
func OperationContext(cmd *cobra.Command, b *client.Bucket) (context.Context, context.CancelFunc) {
	return context.WithTimeout(commandContext(cmd), b.Config().OperationTimeout+time.Second)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// SplitList splits a comma-separated list and drops empty entries
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// PrintJSON writes v as indented JSON to stdout. Raw JSON is re-indented.
func PrintJSON(v any) error {
	var data []byte
	var err error
	switch raw := v.(type) {
	case []byte:
		var parsed any
		if err = json.Unmarshal(raw, &parsed); err != nil {
			_, err = fmt.Fprintln(os.Stdout, string(raw))
			return err
		}
		data, err = json.MarshalIndent(parsed, "", "  ")
	default:
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
