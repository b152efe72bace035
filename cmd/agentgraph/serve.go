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
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-agent-graph/log"
	"trpc.group/trpc-go/trpc-agent-graph/server/rest"
	"trpc.group/trpc-go/trpc-agent-graph/telemetry/prom"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(f *rootFlags) *cobra.Command {
	var (
		addr    string
		origins []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Serves runs, threads, tenant configs, the graph and Prometheus metrics over HTTP.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			stop, err := f.startTelemetry(ctx)
			if err != nil {
				return err
			}
			defer stop()

			collector := prom.New()
			execOpts, nodeOpts := instrument(collector)
			e, err := f.loadEngine(ctx, false, nodeOpts...)
			if err != nil {
				return err
			}
			defer e.Close()
			store, err := f.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			r, states, configs, err := f.newRunner(e, store, execOpts...)
			if err != nil {
				return err
			}

			s := rest.New(r,
				rest.WithStateRepository(states),
				rest.WithConfigRepository(configs),
				rest.WithGraph(e.graph),
				rest.WithMetricsHandler(collector.Handler()),
				rest.WithAllowedOrigins(origins...),
			)
			srv := &http.Server{
				Addr:              addr,
				Handler:           s.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			serverErrors := make(chan error, 1)
			go func() {
				log.Infof("serving graph %s on %s with %s storage", e.def.Name, addr, f.storage)
				serverErrors <- srv.ListenAndServe()
			}()

			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				log.Infof("shutting down")
			}
			shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancelShutdown()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warnf("graceful shutdown did not complete in %v: %v", shutdownTimeout, err)
				return srv.Close()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringSliceVar(&origins, "cors-origin", []string{"*"}, "Allowed CORS origins")
	return cmd
}
