// Command unsuspend-cert clears CertificateHold, either for one serial
// or for every currently-held certificate under a CA (spec.md §4.6's
// only reversible revocation reason). Grounded on the same
// admin-revoker CLI shape as revoke-cert, using revocation.Machine's
// Unrevoke/UnsuspendAll instead of a second RPC call. -force reverses a
// revocation whose current reason isn't certificateHold (spec.md §4.4's
// unrevoke_cert(ca, serial, force)); it has no effect with -all, since
// UnsuspendAll only ever walks certificates already on hold.
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
	"github.com/silverline-ca/corepki/revocation"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	caName := flag.String("ca", "", "name of the issuing CA, as configured")
	serial := flag.String("serial", "", "certificate serial number, lowercase hex (omit with -all)")
	all := flag.Bool("all", false, "unsuspend every held certificate under this CA")
	force := flag.Bool("force", false, "reverse a revocation even if its current reason isn't certificateHold")
	flag.Parse()

	_, logger := cmd.StatsAndLogging("unsuspend-cert", false)
	if *configPath == "" || *caName == "" || (*serial == "" && !*all) {
		fmt.Fprintln(os.Stderr, "usage: unsuspend-cert -config <path> -ca <name> {-serial <hex> [-force] | -all}")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	cmd.FailOnError(logger, err, "unsuspend-cert: load config")

	caConf, err := bootstrap.CAIDByName(cfg, *caName)
	cmd.FailOnError(logger, err, "unsuspend-cert: resolve CA")

	clk := clock.Default()
	st, err := bootstrap.Store(cfg, clk, logger)
	cmd.FailOnError(logger, err, "unsuspend-cert: open store")

	machine := revocation.New(st, clk)
	ctx := context.Background()
	if *all {
		n, err := machine.UnsuspendAll(ctx, caConf.CAID)
		cmd.FailOnError(logger, err, "unsuspend-cert: unsuspend all")
		fmt.Fprintf(os.Stdout, "unsuspended %d certificates\n", n)
		return
	}
	err = machine.Unrevoke(ctx, caConf.CAID, *serial, *force)
	cmd.FailOnError(logger, err, "unsuspend-cert: unrevoke")
	fmt.Fprintf(os.Stdout, "unsuspended %s\n", *serial)
}
