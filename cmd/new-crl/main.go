// Command new-crl generates a fresh full or delta CRL for a CA, signs
// it, and persists it to the store -- the write side of spec.md §6's
// CLI surface (crl is the read side, for fetching what's already there).
package main

import (
	"context"
	"crypto/x509"
	"flag"
	"fmt"
	"os"

	"github.com/jmhodges/clock"

	"github.com/silverline-ca/corepki/cmd"
	"github.com/silverline-ca/corepki/cmd/internal/bootstrap"
	"github.com/silverline-ca/corepki/config"
	"github.com/silverline-ca/corepki/crl"
	"github.com/silverline-ca/corepki/uid"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	caName := flag.String("ca", "", "name of the CA, as configured")
	delta := flag.Bool("delta", false, "generate a delta CRL instead of a full CRL")
	flag.Parse()

	_, logger := cmd.StatsAndLogging("new-crl", false)
	if *configPath == "" || *caName == "" {
		fmt.Fprintln(os.Stderr, "usage: new-crl -config <path> -ca <name> [-delta]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	cmd.FailOnError(logger, err, "new-crl: load config")

	caConf, err := bootstrap.CAIDByName(cfg, *caName)
	cmd.FailOnError(logger, err, "new-crl: resolve CA")

	validity, err := config.ParseDuration("crl_validity", caConf.CRLValidity)
	cmd.FailOnError(logger, err, "new-crl: parse crl_validity")

	clk := clock.Default()
	st, err := bootstrap.Store(cfg, clk, logger)
	cmd.FailOnError(logger, err, "new-crl: open store")

	id, err := bootstrap.LoadIssuer(caConf, clk)
	cmd.FailOnError(logger, err, "new-crl: load issuer")

	uidGen, err := uid.New(clk, cfg.UID.EpochMs, cfg.UID.ShardID)
	cmd.FailOnError(logger, err, "new-crl: build id generator")

	generator := crl.New(st, clk, logger)
	opts := crl.Options{CAID: caConf.CAID, Validity: validity, RetainGen: caConf.CRLRetainGen}

	ctx := context.Background()
	var der []byte
	if *delta {
		der, err = generator.GenerateDelta(ctx, uidGen.Next(), id, opts)
	} else {
		der, err = generator.GenerateFull(ctx, uidGen.Next(), id, opts)
	}
	cmd.FailOnError(logger, err, "new-crl: generate")

	parsed, err := x509.ParseRevocationList(der)
	if err == nil {
		fmt.Fprintf(os.Stderr, "issued crl number %s for %s\n", parsed.Number, id.Name)
	}
	if _, err := os.Stdout.Write(der); err != nil {
		cmd.FailOnError(logger, err, "new-crl: write CRL")
	}
}
