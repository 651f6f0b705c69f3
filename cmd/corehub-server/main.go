// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Command corehub-server runs the authoritative state-replication hub
// over a WebSocket transport.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sage-x-project/corehub/genparams"
	"github.com/sage-x-project/corehub/hub"
	"github.com/sage-x-project/corehub/internal/config"
	"github.com/sage-x-project/corehub/internal/logger"
	"github.com/sage-x-project/corehub/internal/metrics"
	wsTransport "github.com/sage-x-project/corehub/transport/websocket"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "corehub-server",
		Short: "Runs the corehub state-replication server",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newKeygenCmd(&configPath))
	return root
}

func loadConfig(path string) config.Config {
	_ = godotenv.Load() // optional; absent .env is not an error

	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log := logger.GetDefaultLogger()
		log.Fatal("failed to load config", logger.String("path", path), logger.Error(err))
	}
	return cfg
}

func newLogger(cfg config.LoggingConfig) logger.Logger {
	log := logger.NewDefaultLogger()
	log.SetLevel(parseLevel(cfg.Level))
	log.SetPrettyPrint(cfg.Pretty)
	return log
}

func parseLevel(s string) logger.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return logger.DebugLevel
	case "WARN":
		return logger.WarnLevel
	case "ERROR":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the server and block until shutdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(*configPath)
			log := newLogger(cfg.Logging)

			kp, err := genparams.LoadOrCreateKeypair(cfg.Server.KeypairPath)
			if err != nil {
				return err
			}
			genSvc := genparams.NewService(kp)

			reg := hub.NewRegistry(applicationHydrate, applicationReducer, applicationFilter, log)
			reg.SetIdleProbe(time.Duration(cfg.Server.WorkerIdleProbe))
			h := hub.NewHub(reg, genSvc, log)

			server := wsTransport.NewServer(h, contextKeyFromPath, nil, log,
				time.Duration(cfg.Server.ReadTimeout), time.Duration(cfg.Server.WriteTimeout))

			mux := http.NewServeMux()
			mux.Handle("/ws/", server.Handler())

			httpServer := &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Metrics.Enabled {
				go func() {
					log.Info("metrics listening", logger.String("addr", cfg.Metrics.Addr))
					if err := metrics.StartServer(cfg.Metrics.Addr); err != nil && err != http.ErrServerClosed {
						log.Error("metrics server error", logger.Error(err))
					}
				}()
			}

			go func() {
				log.Info("listening", logger.String("addr", cfg.Server.ListenAddr))
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("server error", logger.Error(err))
				}
			}()

			<-ctx.Done()
			log.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			_ = server.Close()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
}

func newKeygenCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate (or verify) the server's persisted RSA keypair",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(*configPath)
			_, err := genparams.LoadOrCreateKeypair(cfg.Server.KeypairPath)
			return err
		},
	}
}

func contextKeyFromPath(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/ws/")
}

// applicationHydrate, applicationReducer, and applicationFilter are
// collaborators the spec treats as externally supplied; this
// entrypoint wires a minimal in-memory demo store so `serve` is
// runnable out of the box.
func applicationHydrate(_ context.Context, key string, _ any) (any, error) {
	return map[string]any{"key": key, "count": float64(0)}, nil
}

func applicationReducer(state any, action hub.Action) any {
	s, ok := state.(map[string]any)
	if !ok {
		return state
	}
	if action.Type == "inc" {
		if c, ok := s["count"].(float64); ok {
			s["count"] = c + 1
		}
	}
	return s
}

func applicationFilter(_ *hub.FilterContext, action hub.Action) (hub.Verdict, error) {
	return hub.Verdict{Kind: hub.VerdictAccept, Action: action}, nil
}
