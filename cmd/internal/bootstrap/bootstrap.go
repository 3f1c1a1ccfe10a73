// Package bootstrap holds the store/issuer wiring every cmd/ entry point
// needs, factored out so enroll-cert, revoke-cert, unsuspend-cert, crl,
// and new-crl don't each re-derive the same database-open-and-dialect
// dance. Not imported by any library package -- command-only plumbing.
package bootstrap

import (
	"crypto"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmhodges/clock"

	"github.com/silverline-ca/corepki/ca"
	"github.com/silverline-ca/corepki/config"
	"github.com/silverline-ca/corepki/hashsig"
	"github.com/silverline-ca/corepki/issuer"
	"github.com/silverline-ca/corepki/pkierrors"
	"github.com/silverline-ca/corepki/signer"
	"github.com/silverline-ca/corepki/store"
)

// Store opens the database the config names and wraps it in a *store.Store.
func Store(cfg *config.Config, clk clock.Clock, logger logr.Logger) (*store.Store, error) {
	db, err := sql.Open(cfg.DBDriver, cfg.DBConnect)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open database: %w", err)
	}
	return store.New(db, store.MySQLDialect{}, clk, logger), nil
}

// CAIDByName finds the configured CAConfig by name, returning an error
// if it's not present -- CLI commands take a CA name on the command
// line, not the store's internal numeric id.
func CAIDByName(cfg *config.Config, name string) (*config.CAConfig, error) {
	for i := range cfg.CAs {
		if cfg.CAs[i].Name == name {
			return &cfg.CAs[i], nil
		}
	}
	return nil, fmt.Errorf("bootstrap: no CA named %q in configuration", name)
}

// EmptyIssuerTable returns an issuer.Table with no identities registered,
// the starting point every CLI entry fills in once it has loaded the
// named CA's certificate and signer pool.
func EmptyIssuerTable() *issuer.Table {
	return issuer.NewTable()
}

// identityAlgorithms are the digest algorithms every issuer.Identity
// precomputes name/key hashes under, covering both legacy SHA-1 (CRL
// AuthorityKeyId, older OCSP clients) and SHA-256 CertID requests
// (spec.md §4.9).
var identityAlgorithms = []hashsig.Algorithm{hashsig.SHA1, hashsig.SHA256}

// LoadIssuer builds a live issuer.Identity from configuration: it reads
// the CA's certificate off disk, builds a signer.Pool from the PEM key
// file named by key.file, and precomputes the identity's name/key
// hashes. A CA configured only with a PKCS#11 slot is not loaded here.
func LoadIssuer(cac *config.CAConfig, clk clock.Clock) (*issuer.Identity, error) {
	certPEM, err := os.ReadFile(cac.CertFile)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: read CA certificate %s: %w", cac.CertFile, err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, pkierrors.BadRequestError("bootstrap: no PEM block in %s", cac.CertFile)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: parse CA certificate %s: %w", cac.CertFile, err)
	}

	pool, err := loadSignerPool(cac)
	if err != nil {
		return nil, err
	}

	return issuer.NewIdentity(cac.Name, cac.CAID, cert, pool, identityAlgorithms)
}

// loadSignerPool builds a signer.Pool for cac's configured keystore. Only
// a PEM private-key file is currently supported here; PKCS#11 login and
// slot discovery is HSM-vendor-specific ceremony left to a dedicated
// provisioning step, not this shared bootstrap helper.
func loadSignerPool(cac *config.CAConfig) (*signer.Pool, error) {
	if cac.Key.File == "" {
		return nil, pkierrors.BadRequestError("bootstrap: CA %q has no key.file configured (PKCS#11 loading is not implemented by this command)", cac.Name)
	}
	keyPEM, err := os.ReadFile(cac.Key.File)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: read CA key %s: %w", cac.Key.File, err)
	}
	signKey, err := ParsePrivateKeyPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: parse CA key %s: %w", cac.Key.File, err)
	}

	parallelism := cac.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	return signer.NewPool(signer.Config{
		Parallelism: parallelism,
		New: func() (signer.Instance, error) {
			return signer.NewFileInstance(signKey), nil
		},
	})
}

// BuildProfiles converts every profile configured under cac into a
// ca.Profile, resolving its validity duration, key-usage names, and
// validity-mode/subject-ordering policy (spec.md §4.7 steps 5-6).
func BuildProfiles(cac *config.CAConfig) (map[string]ca.Profile, error) {
	mode, err := parseValidityMode(cac.ValidityMode)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: CA %q: %w", cac.Name, err)
	}
	profiles := make(map[string]ca.Profile, len(cac.Profiles))
	for _, p := range cac.Profiles {
		validity, err := config.ParseDuration(p.Name+".validity", p.Validity)
		if err != nil {
			return nil, err
		}
		keyUsage, err := parseKeyUsages(p.KeyUsages)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: profile %q: %w", p.Name, err)
		}
		extKeyUsage, err := parseExtKeyUsages(p.ExtKeyUsage)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: profile %q: %w", p.Name, err)
		}
		maxPathLen := p.MaxPathLen
		if !p.IsCA {
			maxPathLen = -1
		}
		profiles[p.Name] = ca.Profile{
			Name:                   p.Name,
			Validity:               validity,
			MaxNames:               p.MaxNames,
			KeyUsage:               keyUsage,
			ExtKeyUsage:            extKeyUsage,
			IsCA:                   p.IsCA,
			MaxPathLen:             maxPathLen,
			NotBeforeOffsetSeconds: p.NotBefore.OffsetSeconds,
			NotBeforeMidnightTZ:    p.NotBefore.MidnightTimeZone,
			ValidityMode:           mode,
			SubjectRDNOrder:        p.SubjectRDNOrder,
			MaxSubjectRDNs:         p.MaxSubjectRDNs,
		}
	}
	return profiles, nil
}

func parseValidityMode(s string) (ca.ValidityMode, error) {
	switch s {
	case "", "STRICT":
		return ca.ValidityModeStrict, nil
	case "LAX":
		return ca.ValidityModeLax, nil
	case "CUTOFF":
		return ca.ValidityModeCutoff, nil
	default:
		return "", pkierrors.BadRequestError("validity_mode %q is not one of STRICT, LAX, CUTOFF", s)
	}
}

var keyUsageNames = map[string]x509.KeyUsage{
	"digitalSignature": x509.KeyUsageDigitalSignature,
	"contentCommitment": x509.KeyUsageContentCommitment,
	"keyEncipherment":   x509.KeyUsageKeyEncipherment,
	"dataEncipherment":  x509.KeyUsageDataEncipherment,
	"keyAgreement":      x509.KeyUsageKeyAgreement,
	"certSign":          x509.KeyUsageCertSign,
	"crlSign":           x509.KeyUsageCRLSign,
	"encipherOnly":      x509.KeyUsageEncipherOnly,
	"decipherOnly":      x509.KeyUsageDecipherOnly,
}

func parseKeyUsages(names []string) (x509.KeyUsage, error) {
	var out x509.KeyUsage
	for _, n := range names {
		u, ok := keyUsageNames[n]
		if !ok {
			return 0, pkierrors.BadRequestError("unknown key usage %q", n)
		}
		out |= u
	}
	return out, nil
}

var extKeyUsageNames = map[string]x509.ExtKeyUsage{
	"serverAuth":      x509.ExtKeyUsageServerAuth,
	"clientAuth":      x509.ExtKeyUsageClientAuth,
	"codeSigning":     x509.ExtKeyUsageCodeSigning,
	"emailProtection": x509.ExtKeyUsageEmailProtection,
	"timeStamping":    x509.ExtKeyUsageTimeStamping,
	"ocspSigning":     x509.ExtKeyUsageOcspSigning,
	"any":             x509.ExtKeyUsageAny,
}

func parseExtKeyUsages(names []string) ([]x509.ExtKeyUsage, error) {
	out := make([]x509.ExtKeyUsage, 0, len(names))
	for _, n := range names {
		u, ok := extKeyUsageNames[n]
		if !ok {
			return nil, pkierrors.BadRequestError("unknown extended key usage %q", n)
		}
		out = append(out, u)
	}
	return out, nil
}

// ParsePrivateKeyPEM decodes a single PEM block and parses it as a
// PKCS#8, PKCS#1 (RSA), or SEC1 (EC) private key, shared by LoadIssuer
// and cmd/cacerts's offline key/certificate match check.
func ParsePrivateKeyPEM(pemBytes []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, pkierrors.BadRequestError("bootstrap: no PEM block in key file")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		signKey, ok := key.(crypto.Signer)
		if !ok {
			return nil, pkierrors.BadRequestError("bootstrap: PKCS#8 key is not a signing key (%T)", key)
		}
		return signKey, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, pkierrors.BadRequestError("bootstrap: unrecognized private key encoding")
}
