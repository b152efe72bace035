//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-agent-graph/runner"
)

// runOutput is printed by the run command.
type runOutput struct {
	RunID   string   `json:"run_id"`
	Status  string   `json:"status"`
	Answer  string   `json:"answer,omitempty"`
	Steps   int      `json:"steps"`
	Visited []string `json:"visited"`
	Errors  []string `json:"errors,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func newRunCmd(f *rootFlags) *cobra.Command {
	var tenant, thread, runID string
	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Run the graph once on a thread",
		Long: `Appends the input to the thread as a user message, runs the graph and ` +
			`saves the thread. The outcome is printed as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stop, err := f.startTelemetry(ctx)
			if err != nil {
				return err
			}
			defer stop()

			e, err := f.loadEngine(ctx, false)
			if err != nil {
				return err
			}
			defer e.Close()
			store, err := f.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			r, _, _, err := f.newRunner(e, store)
			if err != nil {
				return err
			}

			var opts []runner.RunOption
			if runID != "" {
				opts = append(opts, runner.WithRunID(runID))
			}
			res, err := r.Run(ctx, tenant, thread, args[0], opts...)
			if err != nil {
				return err
			}
			out := runOutput{
				RunID:   res.RunID,
				Status:  string(res.Status),
				Answer:  res.Answer,
				Steps:   res.Steps,
				Visited: res.Visited,
			}
			for _, nodeErr := range res.Errors {
				out.Errors = append(out.Errors, nodeErr.Error())
			}
			if res.Err != nil {
				out.Error = res.Err.Error()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant id")
	cmd.Flags().StringVar(&thread, "thread", "default", "Thread id")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id; generated when empty")
	return cmd
}
