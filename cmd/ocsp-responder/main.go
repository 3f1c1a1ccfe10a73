// Command ocsp-responder serves RFC 6960 OCSP responses over HTTP for
// every CA named in configuration (spec.md §4.9, §6's "OCSP responder"
// module), combining ocsp.Responder with ocsp.Mux's POST/GET routing.
// Grounded on cmd/ocsp-responder/main_test.go's mux(stats, path, src)
// shape, rebuilt against this module's own Responder/issuer/store stack
// in place of cfssl's InMemorySource and a direct boulder-sa RPC client.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/go-logr/logr"
	"github.com/jmhodges/clock"

	"github.com/silverline-ca/corepki/cmd"
	"github.com/silverline-ca/corepki/cmd/internal/bootstrap"
	"github.com/silverline-ca/corepki/config"
	"github.com/silverline-ca/corepki/ocsp"

	"github.com/go-redis/redis/v8"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	addr := flag.String("addr", ":4002", "address to listen on")
	path := flag.String("path", "/", "URL path prefix OCSP requests are served under")
	flag.Parse()

	scope, logger := cmd.StatsAndLogging("ocsp-responder", false)
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: ocsp-responder -config <path> [-addr :4002] [-path /]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	cmd.FailOnError(logger, err, "ocsp-responder: load config")

	clk := clock.Default()
	st, err := bootstrap.Store(cfg, clk, logger)
	cmd.FailOnError(logger, err, "ocsp-responder: open store")

	issuers := bootstrap.EmptyIssuerTable()
	for _, cac := range cfg.CAs {
		id, err := bootstrap.LoadIssuer(&cac, clk)
		cmd.FailOnError(logger, err, fmt.Sprintf("ocsp-responder: load issuer %s", cac.Name))
		issuers.Register(id)
	}

	cache := ocspCache(cfg, logger)
	responder := ocsp.NewWithLimits(issuers, st, cache, logger, cfg.OCSP.MaxRequestListCount, cfg.OCSP.MaxRequestSize)
	responder.SetNonceLimit(cfg.OCSP.Nonce.MaxLen)
	responder.SetSupportsHTTPGet(cfg.OCSP.SupportsHTTPGet)
	handler := ocsp.Mux(responder, *path, clk, scope)

	go cmd.DebugServer(cfg.DebugAddr, logger)

	logger.Info("ocsp-responder: listening", "addr", *addr)
	cmd.FailOnError(logger, http.ListenAndServe(*addr, handler), "ocsp-responder: serve")
}

// ocspCache builds the response cache configuration names, falling
// back to no caching when Redis isn't configured (ocsp.New accepts a
// nil Cache to mean "always recompute").
func ocspCache(cfg *config.Config, logger logr.Logger) ocsp.Cache {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	// Confirm the connection eagerly so a misconfigured cache fails at
	// startup rather than silently degrading every request to a cache miss.
	err := client.Ping(context.Background()).Err()
	cmd.FailOnError(logger, err, "ocsp-responder: ping redis cache")
	return ocsp.RedisCache{Client: client}
}
