/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/suparena/chainquery"
	"github.com/suparena/chainquery/query"
)

var onceCmd = &cobra.Command{
	Use:   "once <module.entry[:arg,...]>...",
	Short: "Read one or more storage values in a single batch",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runOnce,
}

var watchCmd = &cobra.Command{
	Use:   "watch <module.entry[:arg,...]>...",
	Short: "Follow storage values, printing the full tuple on every change",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

var keysCmd = &cobra.Command{
	Use:   "keys <module.entry[:leading,...]>",
	Short: "List the storage keys of a map entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeys,
}

var entriesCmd = &cobra.Command{
	Use:   "entries <module.entry[:leading,...]>",
	Short: "List the keys and decoded values of a map entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntries,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := chainquery.GetVersionInfo()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "chainquery version %s\n", info.Version)
		fmt.Fprintf(out, "Git commit: %s\n", info.GitCommit)
		fmt.Fprintf(out, "Build date: %s\n", info.BuildDate)
		fmt.Fprintf(out, "Go version: %s\n", info.GoVersion)
	},
}

type callResult struct {
	Call  string `json:"call"`
	Value any    `json:"value"`
}

type entryResult struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(commandContext(cmd), timeout)
	defer cancel()

	api, cfg, closeFn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	calls, err := parseCalls(api, args)
	if err != nil {
		return err
	}
	at, err := cfg.block()
	if err != nil {
		return err
	}
	values, err := api.QueryOnceAt(ctx, at, calls)
	if err != nil {
		return err
	}

	results := make([]callResult, len(values))
	for i, v := range values {
		results[i] = callResult{Call: args[i], Value: printable(v)}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if cfgFlags.At != "" {
		return errors.New("watch follows the current block; --at is not supported")
	}
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, _, closeFn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	calls, err := parseCalls(api, args)
	if err != nil {
		return err
	}
	updates, err := api.Watch(ctx, calls, 16)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for values := range updates {
		if err := enc.Encode(printable(values)); err != nil {
			return err
		}
	}
	return nil
}

func runKeys(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(commandContext(cmd), timeout)
	defer cancel()

	api, cfg, closeFn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	entry, leading, err := parseEntry(api, args[0])
	if err != nil {
		return err
	}
	at, err := cfg.block()
	if err != nil {
		return err
	}
	keys, err := entry.KeysAt(ctx, at, leading...)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, key := range keys {
		fmt.Fprintln(out, key.Hex())
	}
	return nil
}

func runEntries(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(commandContext(cmd), timeout)
	defer cancel()

	api, cfg, closeFn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	entry, leading, err := parseEntry(api, args[0])
	if err != nil {
		return err
	}
	at, err := cfg.block()
	if err != nil {
		return err
	}
	pairs, err := entry.EntriesAt(ctx, at, leading...)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, kv := range pairs {
		if err := enc.Encode(entryResult{Key: kv.Key.Hex(), Value: printable(kv.Value)}); err != nil {
			return err
		}
	}
	return nil
}

// parseEntry resolves "module.entry[:arg,...]" to an entry and its arguments.
func parseEntry(api *chainquery.API, expr string) (*query.Entry, []any, error) {
	name, rawArgs, hasArgs := strings.Cut(expr, ":")
	module, method, ok := strings.Cut(name, ".")
	if !ok || module == "" || method == "" {
		return nil, nil, fmt.Errorf("call %q: want module.entry[:arg,...]", expr)
	}
	entry, err := api.Query(module, method)
	if err != nil {
		return nil, nil, err
	}
	var args []any
	if hasArgs && rawArgs != "" {
		for _, raw := range strings.Split(rawArgs, ",") {
			args = append(args, parseArg(strings.TrimSpace(raw)))
		}
	}
	return entry, args, nil
}

func parseCalls(api *chainquery.API, exprs []string) ([]query.Call, error) {
	calls := make([]query.Call, 0, len(exprs))
	for _, expr := range exprs {
		entry, args, err := parseEntry(api, expr)
		if err != nil {
			return nil, err
		}
		calls = append(calls, entry.With(args...))
	}
	return calls, nil
}

// parseArg keeps arguments as strings, which the codec parses per key type,
// except for booleans.
func parseArg(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}

// printable converts decoded values into their JSON friendly form.
func printable(v any) any {
	switch x := v.(type) {
	case []byte:
		return hexutil.Bytes(x)
	case *query.Undecodable:
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = printable(item)
		}
		return out
	}
	return v
}
