// Command cacerts loads a configured CA's certificate and private key
// outside of any running process, verifies they match, and prints the
// identity a human operator needs before trusting a new issuing CA:
// serial, subject, and SubjectPublicKeyInfo hash. For an HSM-backed key
// it prompts for the PKCS#11 PIN on the controlling terminal rather
// than accepting it as a flag or environment variable, the same
// ceremony-style posture cmd/admin-revoker's confirmation prompt uses
// for destructive actions.
package main

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/silverline-ca/corepki/cmd"
	"github.com/silverline-ca/corepki/cmd/internal/bootstrap"
	"github.com/silverline-ca/corepki/config"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	caName := flag.String("ca", "", "name of the CA, as configured")
	flag.Parse()

	_, logger := cmd.StatsAndLogging("cacerts", false)
	if *configPath == "" || *caName == "" {
		fmt.Fprintln(os.Stderr, "usage: cacerts -config <path> -ca <name>")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	cmd.FailOnError(logger, err, "cacerts: load config")

	caConf, err := bootstrap.CAIDByName(cfg, *caName)
	cmd.FailOnError(logger, err, "cacerts: resolve CA")

	certPEM, err := os.ReadFile(caConf.CertFile)
	cmd.FailOnError(logger, err, "cacerts: read CA certificate")
	block, _ := pem.Decode(certPEM)
	if block == nil {
		cmd.FailOnError(logger, fmt.Errorf("no PEM block in %s", caConf.CertFile), "cacerts: decode certificate")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	cmd.FailOnError(logger, err, "cacerts: parse certificate")

	spkiSum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	fmt.Printf("ca:      %s\n", *caName)
	fmt.Printf("subject: %s\n", cert.Subject)
	fmt.Printf("serial:  %s\n", cert.SerialNumber.Text(16))
	fmt.Printf("spki:    %x\n", spkiSum)

	switch {
	case caConf.Key.File != "":
		if err := verifyFileKeyMatches(caConf.Key.File, cert); err != nil {
			cmd.FailOnError(logger, err, "cacerts: verify key material")
		}
		fmt.Println("key:     matches certificate (file)")
	case caConf.Key.PKCS11.Module != "":
		if err := promptPKCS11PIN(caConf); err != nil {
			cmd.FailOnError(logger, err, "cacerts: PKCS#11 PIN entry")
		}
		fmt.Println("key:     PIN captured; HSM session login is a provisioning-time step not performed by this command")
	default:
		cmd.FailOnError(logger, fmt.Errorf("CA %q has no key.file or key.pkcs11.module configured", *caName), "cacerts: resolve key")
	}
}

// verifyFileKeyMatches confirms the PEM private key at path produces
// the same public key embedded in cert, catching a mismatched
// cert/key pair before it's ever wired into a signer.Pool.
func verifyFileKeyMatches(path string, cert *x509.Certificate) error {
	keyPEM, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read key %s: %w", path, err)
	}
	signer, err := bootstrap.ParsePrivateKeyPEM(keyPEM)
	if err != nil {
		return fmt.Errorf("parse key %s: %w", path, err)
	}
	certPub, ok := cert.PublicKey.(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return fmt.Errorf("certificate public key type %T does not support comparison", cert.PublicKey)
	}
	if !certPub.Equal(signer.Public()) {
		return fmt.Errorf("private key at %s does not match the certificate's public key", path)
	}
	return nil
}

// promptPKCS11PIN reads the HSM PIN from the controlling terminal with
// echo disabled, rather than accepting it on the command line or in an
// environment variable where it could leak into shell history or a
// process listing.
func promptPKCS11PIN(caConf *config.CAConfig) error {
	fmt.Printf("PIN for %s (token %s): ", caConf.Key.PKCS11.Module, caConf.Key.PKCS11.Token)
	pin, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read PIN: %w", err)
	}
	if len(pin) == 0 {
		return fmt.Errorf("empty PIN")
	}
	return nil
}
