// Command revoke-cert revokes one certificate by CA name and serial
// (hex), the minimal CLI surface spec.md §6 names. Grounded on
// cmd/admin-revoker/main.go's revokeBySerial -- reason code validation,
// look up by serial, revoke -- rebuilt against revocation.Machine
// instead of an RPC call to a separate RA process. -suspended-only
// drives spec.md §4.6's revoke_suspended instead of the general-purpose
// transition: it rejects with not_permitted if the certificate isn't
// currently on hold, rather than also accepting a Good certificate.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jmhodges/clock"

	"github.com/silverline-ca/corepki/cmd"
	"github.com/silverline-ca/corepki/cmd/internal/bootstrap"
	"github.com/silverline-ca/corepki/config"
	"github.com/silverline-ca/corepki/revocation"
	"github.com/silverline-ca/corepki/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	caName := flag.String("ca", "", "name of the issuing CA, as configured")
	serial := flag.String("serial", "", "certificate serial number, lowercase hex")
	reason := flag.Int("reason", 0, "CRLReason code (RFC 5280)")
	force := flag.Bool("force", false, "allow re-revoking a certificate already revoked with a final reason, or re-applying a hold to one already on hold")
	suspendedOnly := flag.Bool("suspended-only", false, "require the certificate to currently be on hold (revoke_suspended); incompatible with -force")
	flag.Parse()

	_, logger := cmd.StatsAndLogging("revoke-cert", false)
	if *configPath == "" || *caName == "" || *serial == "" {
		fmt.Fprintln(os.Stderr, "usage: revoke-cert -config <path> -ca <name> -serial <hex> [-reason N] [-force | -suspended-only]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	cmd.FailOnError(logger, err, "revoke-cert: load config")

	caConf, err := bootstrap.CAIDByName(cfg, *caName)
	cmd.FailOnError(logger, err, "revoke-cert: resolve CA")

	clk := clock.Default()
	st, err := bootstrap.Store(cfg, clk, logger)
	cmd.FailOnError(logger, err, "revoke-cert: open store")

	machine := revocation.New(st, clk)
	var rec *store.CertWithRevInfo
	if *suspendedOnly {
		rec, err = machine.RevokeSuspended(context.Background(), caConf.CAID, *serial, revocation.Reason(*reason))
	} else {
		rec, err = machine.Revoke(context.Background(), revocation.Request{
			CAID:   caConf.CAID,
			Serial: *serial,
			Reason: revocation.Reason(*reason),
			Force:  *force,
		})
	}
	cmd.FailOnError(logger, err, "revoke-cert: revoke")

	fmt.Fprintf(os.Stdout, "revoked %s at %s, reason=%s\n", *serial, time.Unix(rec.Rev.Time, 0).UTC().Format(time.RFC3339), revocation.Reason(*reason))
}
