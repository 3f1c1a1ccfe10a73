// Command crl writes the current stored CRL for a CA to stdout as DER,
// the read side of spec.md §6's CLI surface (new-crl is the write side:
// it generates and persists a fresh CRL).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jmhodges/clock"

	"github.com/silverline-ca/corepki/cmd"
	"github.com/silverline-ca/corepki/cmd/internal/bootstrap"
	"github.com/silverline-ca/corepki/config"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	caName := flag.String("ca", "", "name of the CA, as configured")
	delta := flag.Bool("delta", false, "fetch the current delta CRL instead of the full CRL")
	flag.Parse()

	_, logger := cmd.StatsAndLogging("crl", false)
	if *configPath == "" || *caName == "" {
		fmt.Fprintln(os.Stderr, "usage: crl -config <path> -ca <name> [-delta]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	cmd.FailOnError(logger, err, "crl: load config")

	caConf, err := bootstrap.CAIDByName(cfg, *caName)
	cmd.FailOnError(logger, err, "crl: resolve CA")

	clk := clock.Default()
	st, err := bootstrap.Store(cfg, clk, logger)
	cmd.FailOnError(logger, err, "crl: open store")

	der, err := st.GetEncodedCRL(context.Background(), caConf.CAID, *delta)
	cmd.FailOnError(logger, err, "crl: fetch CRL")

	if _, err := os.Stdout.Write(der); err != nil {
		cmd.FailOnError(logger, err, "crl: write CRL")
	}
}
