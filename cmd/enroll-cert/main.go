// Command enroll-cert submits a PKCS#10 CSR file to the issuance
// pipeline and writes the signed certificate to stdout, the minimal CLI
// surface spec.md §6 asks for ("out of scope for rewrite; minimal
// subset for testability"). Grounded on cmd/admin-revoker/main.go's
// flag-parse -> load-config -> act -> print shape, using this module's
// own config/ca/issuer/store/log stack instead of AMQP RPC clients.
package main

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/jmhodges/clock"

	"github.com/silverline-ca/corepki/ca"
	"github.com/silverline-ca/corepki/cmd"
	"github.com/silverline-ca/corepki/cmd/internal/bootstrap"
	"github.com/silverline-ca/corepki/config"
	"github.com/silverline-ca/corepki/store"
	"github.com/silverline-ca/corepki/uid"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	issuerName := flag.String("issuer", "", "name of the issuing CA, as configured")
	profileName := flag.String("profile", "", "name of the issuance profile to apply")
	csrPath := flag.String("csr", "", "path to a DER-encoded PKCS#10 CSR")
	flag.Parse()

	_, logger := cmd.StatsAndLogging("enroll-cert", false)
	if *configPath == "" || *issuerName == "" || *profileName == "" || *csrPath == "" {
		usageExit()
	}

	cfg, err := config.Load(*configPath)
	cmd.FailOnError(logger, err, "enroll-cert: load config")

	csrDER, err := os.ReadFile(*csrPath)
	cmd.FailOnError(logger, err, "enroll-cert: read CSR")

	authority, err := buildAuthority(cfg, logger)
	cmd.FailOnError(logger, err, "enroll-cert: build authority")

	der, err := authority.Issue(context.Background(), *issuerName, ca.IssuanceRequest{
		CSRDER:      csrDER,
		ProfileName: *profileName,
		EndEntity:   true,
	})
	cmd.FailOnError(logger, err, "enroll-cert: issue certificate")

	cert, err := x509.ParseCertificate(der)
	cmd.FailOnError(logger, err, "enroll-cert: parse issued certificate")
	_ = pem.Encode(os.Stdout, &pem.Block{Type: "CERTIFICATE", Bytes: der})
	fmt.Fprintf(os.Stderr, "issued serial %s for %s\n", store.SerialToHex(cert.SerialNumber), cert.Subject)
}

func usageExit() {
	fmt.Fprintln(os.Stderr, "usage: enroll-cert -config <path> -issuer <name> -profile <name> -csr <path>")
	os.Exit(2)
}

// buildAuthority wires a ca.Authority from configuration: opens the
// database the config names, loads each configured CA's certificate and
// signer pool into an issuer.Table entry, and builds the profile set.
func buildAuthority(cfg *config.Config, logger logr.Logger) (*ca.Authority, error) {
	clk := clock.Default()
	st, err := bootstrap.Store(cfg, clk, logger)
	if err != nil {
		return nil, err
	}

	issuers := bootstrap.EmptyIssuerTable()
	profiles := map[string]ca.Profile{}
	for _, cac := range cfg.CAs {
		id, err := bootstrap.LoadIssuer(&cac, clk)
		if err != nil {
			return nil, err
		}
		issuers.Register(id)
		caProfiles, err := bootstrap.BuildProfiles(&cac)
		if err != nil {
			return nil, err
		}
		for name, p := range caProfiles {
			profiles[name] = p
		}
	}

	uidGen, err := uid.New(clk, cfg.UID.EpochMs, cfg.UID.ShardID)
	if err != nil {
		return nil, err
	}
	return ca.New(issuers, profiles, st, uidGen, clk, logger), nil
}
