// Command aerobench is a small CLI for exercising an aeroclient cluster:
// connect, put/get a synthetic workload, run a scan, and dump the
// Prometheus metrics endpoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/aeroclient"
	"github.com/cuemby/aeroclient/pkg/cluster"
	"github.com/cuemby/aeroclient/pkg/log"
	"github.com/cuemby/aeroclient/pkg/policy"
	"github.com/cuemby/aeroclient/pkg/types"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "aerobench",
	Short:   "aerobench drives a workload against an aeroclient cluster",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringSlice("hosts", []string{"127.0.0.1:3000"}, "Seed node addresses (host:port)")
	rootCmd.PersistentFlags().String("namespace", "test", "Namespace to operate against")
	rootCmd.PersistentFlags().String("set", "aerobench", "Set to operate against")
	rootCmd.PersistentFlags().String("user", "", "Cluster username")
	rootCmd.PersistentFlags().String("password", "", "Cluster password")
	rootCmd.PersistentFlags().Bool("metrics", false, "Enable the metrics writer and Prometheus endpoint")
	rootCmd.PersistentFlags().String("metrics-addr", ":9145", "Address to serve /metrics on when --metrics is set")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(putGetCmd, scanCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func connect(cmd *cobra.Command) (*aeroclient.Client, error) {
	hosts, _ := cmd.Flags().GetStringSlice("hosts")
	user, _ := cmd.Flags().GetString("user")
	password, _ := cmd.Flags().GetString("password")
	enableMetrics, _ := cmd.Flags().GetBool("metrics")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	addrs := make([]cluster.Address, 0, len(hosts))
	for _, h := range hosts {
		host, portStr, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("aerobench: invalid host %q, want host:port", h)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("aerobench: invalid port in %q: %w", h, err)
		}
		addrs = append(addrs, cluster.Address{Host: host, Port: port})
	}

	p := policy.DefaultClientPolicy()
	p.User = user
	p.Password = password
	if enableMetrics {
		p.Metrics.Enable = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.LoginTimeout+5*time.Second)
	defer cancel()
	client, err := aeroclient.NewClient(ctx, p, addrs...)
	if err != nil {
		return nil, err
	}

	if enableMetrics {
		mux := http.NewServeMux()
		if reg := client.Metrics(); reg != nil {
			mux.Handle("/metrics", reg.Handler())
		}
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Logger.Warn().Err(err).Msg("aerobench: metrics server stopped")
			}
		}()
	}
	return client, nil
}

var putGetCmd = &cobra.Command{
	Use:   "putget [count]",
	Short: "Write and read back a synthetic workload",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count := 100
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			count = n
		}

		namespace, _ := cmd.Flags().GetString("namespace")
		set, _ := cmd.Flags().GetString("set")

		client, err := connect(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := context.Background()
		start := time.Now()
		for i := 0; i < count; i++ {
			key, err := types.NewKey(namespace, set, types.IntValue(int64(i)))
			if err != nil {
				return err
			}
			if err := client.Put(ctx, nil, key, *types.NewBin("v", types.IntValue(int64(i)))); err != nil {
				return fmt.Errorf("put %d: %w", i, err)
			}
		}
		fmt.Printf("wrote %d records in %s\n", count, time.Since(start))

		start = time.Now()
		for i := 0; i < count; i++ {
			key, err := types.NewKey(namespace, set, types.IntValue(int64(i)))
			if err != nil {
				return err
			}
			rec, err := client.Get(ctx, nil, key)
			if err != nil {
				return fmt.Errorf("get %d: %w", i, err)
			}
			if v := rec.Bin("v"); v == nil || v.Int() != int64(i) {
				return fmt.Errorf("get %d: unexpected bin value", i)
			}
		}
		fmt.Printf("read %d records in %s\n", count, time.Since(start))
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the configured namespace/set and print a record count",
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace, _ := cmd.Flags().GetString("namespace")
		set, _ := cmd.Flags().GetString("set")

		client, err := connect(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		var n int
		err = client.Scan(context.Background(), nil, namespace, set, nil, func(rec *types.Record) error {
			n++
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("scanned %d records\n", n)
		return nil
	},
}
