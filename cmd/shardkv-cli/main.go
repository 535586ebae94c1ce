// Command shardkv-cli is a command-line client for the sharded KV store:
// it resolves each operation through a shardcontroller and the server
// currently owning the affected key(s), the same routing a library
// caller of shardkvclient.Client gets.
//
// Configuration (environment, overridable by flag):
//
//	SHARDKV_CONTROLLER_ADDR  shardcontroller control-port address (required)
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/torua/internal/appconfig"
	"github.com/dreamware/torua/internal/shardkvclient"
	"github.com/dreamware/torua/internal/transport"
)

func main() {
	var controllerAddr string

	root := &cobra.Command{
		Use:   "shardkv-cli",
		Short: "command-line client for the sharded KV store",
	}
	root.PersistentFlags().StringVar(&controllerAddr, "controller-addr",
		appconfig.String("SHARDKV_CONTROLLER_ADDR", ""), "shardcontroller control-port address")

	newClient := func() *shardkvclient.Client {
		if controllerAddr == "" {
			fmt.Fprintln(os.Stderr, "missing --controller-addr (or SHARDKV_CONTROLLER_ADDR)")
			os.Exit(1)
		}
		return shardkvclient.New(controllerAddr, transport.NewPool(0, 0), zap.NewNop())
	}

	root.AddCommand(getCmd(newClient))
	root.AddCommand(putCmd(newClient))
	root.AddCommand(appendCmd(newClient))
	root.AddCommand(deleteCmd(newClient))
	root.AddCommand(multiGetCmd(newClient))
	root.AddCommand(multiPutCmd(newClient))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func getCmd(newClient func() *shardkvclient.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "fetch the value at key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, present, err := newClient().Get(args[0])
			if err != nil {
				return err
			}
			if !present {
				fmt.Println("(absent)")
				return nil
			}
			fmt.Println(v)
			return nil
		},
	}
}

func putCmd(newClient func() *shardkvclient.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "store value at key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient().Put(args[0], args[1])
		},
	}
}

func appendCmd(newClient func() *shardkvclient.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "append <key> <value>",
		Short: "append value onto key's existing value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient().Append(args[0], args[1])
		},
	}
}

func deleteCmd(newClient func() *shardkvclient.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "remove key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient().Delete(args[0])
		},
	}
}

func multiGetCmd(newClient func() *shardkvclient.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "multiget <key> [key...]",
		Short: "fetch several keys in one batched, fanned-out call",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := newClient().MultiGet(args)
			if err != nil {
				return err
			}
			for i, key := range args {
				if values[i].Present {
					fmt.Printf("%s=%s\n", key, values[i].Value)
				} else {
					fmt.Printf("%s=(absent)\n", key)
				}
			}
			return nil
		},
	}
}

func multiPutCmd(newClient func() *shardkvclient.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "multiput <key=value> [key=value...]",
		Short: "store several key=value pairs in one batched, fanned-out call",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]string, len(args))
			values := make([]string, len(args))
			for i, kv := range args {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("malformed pair %q, want key=value", kv)
				}
				keys[i], values[i] = k, v
			}
			return newClient().MultiPut(keys, values)
		},
	}
}
