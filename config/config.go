// Package config loads and validates the YAML configuration this core
// reads at startup: per-CA key material and signer parallelism, issuance
// profiles, CRL/OCSP timing, and database/cache endpoints. Grounds the
// shape directly on ca/certificate-authority.go's Config/KeyConfig/
// PKCS11Config, generalized from one hardcoded CA to a list of named CAs
// each carrying its own profile set, and on cmd/config.go's pattern of
// loading + struct-tag validating before anything else runs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	validator "github.com/letsencrypt/validator/v10"
	"gopkg.in/yaml.v3"
)

// PKCS11Config defines how to load a module for an HSM, unchanged in
// shape from ca/certificate-authority.go's PKCS11Config.
type PKCS11Config struct {
	Module string `yaml:"module" validate:"required_without=File"`
	Token  string `yaml:"token"`
	PIN    string `yaml:"pin"`
	Label  string `yaml:"label"`
}

// KeyConfig names either a PEM file on disk or an HSM slot a signer
// pool should be built from.
type KeyConfig struct {
	File   string       `yaml:"file"`
	PKCS11 PKCS11Config `yaml:"pkcs11"`
}

// NotBeforePolicy controls where a profile's granted notBefore sits
// relative to issuance time (spec.md §4.7 step 6): OffsetSeconds moves
// it forward to now+OffsetSeconds, and a non-empty MidnightTimeZone then
// backdates the result to local midnight in that zone; when both are
// set, both apply.
type NotBeforePolicy struct {
	OffsetSeconds    int    `yaml:"offset_seconds" validate:"gte=0"`
	MidnightTimeZone string `yaml:"midnight_time_zone"`
}

// ProfileConfig is one named issuance profile (spec.md §4.7's "profile
// validation" step, generalizing ca.Config's flat Profile/MaxNames/Expiry
// fields into a named, reusable set).
type ProfileConfig struct {
	Name        string          `yaml:"name" validate:"required"`
	Validity    string          `yaml:"validity" validate:"required"` // time.ParseDuration syntax
	MaxNames    int             `yaml:"max_names" validate:"gte=0"`
	IsCA        bool            `yaml:"is_ca"`
	MaxPathLen  int             `yaml:"max_path_len"`
	KeyUsages   []string        `yaml:"key_usages" validate:"required,min=1"`
	ExtKeyUsage []string        `yaml:"ext_key_usages"`
	NotBefore   NotBeforePolicy `yaml:"not_before"`
	// SubjectRDNOrder names the RDN attribute types (e.g. "C", "O",
	// "OU", "CN") in the order the granted subject sorts them; RDNs
	// of unlisted types keep their incoming relative order, appended
	// after every named type (spec.md §4.7 step 5).
	SubjectRDNOrder []string `yaml:"subject_rdn_order"`
	// MaxSubjectRDNs truncates the granted subject to at most this
	// many RDNs, 0 meaning unbounded (spec.md §4.7 step 5).
	MaxSubjectRDNs int `yaml:"max_subject_rdns" validate:"gte=0"`
}

// CAConfig configures one issuing identity: its certificate, its signer
// pool, and the CRL/OCSP timing that identity's responder uses.
type CAConfig struct {
	Name string `yaml:"name" validate:"required"`
	// CAID is the store's numeric identifier for this CA's row, assigned
	// once when the CA is first provisioned (spec.md §6's CA table) and
	// referenced by name everywhere else in configuration and on the CLI.
	CAID         int64         `yaml:"ca_id" validate:"required"`
	CertFile     string        `yaml:"cert_file" validate:"required"`
	Key          KeyConfig     `yaml:"key"`
	Parallelism  int           `yaml:"parallelism" validate:"gte=1"`
	SerialPrefix int           `yaml:"serial_prefix"`
	LifespanOCSP string          `yaml:"lifespan_ocsp" validate:"required"`
	CRLValidity  string          `yaml:"crl_validity" validate:"required"`
	CRLRetainGen int             `yaml:"crl_retain_generations" validate:"gte=1"`
	// ValidityMode governs how a requested notBefore/notAfter is
	// reconciled against the granted profile (spec.md §4.7 step 6):
	// STRICT rejects a requested notAfter later than notBefore plus the
	// profile validity, LAX honors the requested notAfter, and CUTOFF
	// clamps notAfter to the issuing CA certificate's own notAfter.
	ValidityMode string          `yaml:"validity_mode" validate:"required,oneof=STRICT LAX CUTOFF"`
	Profiles     []ProfileConfig `yaml:"profiles" validate:"required,min=1,dive"`
}

// NonceConfig bounds the RFC 8954 Nonce extension the responder will
// echo back (spec.md §4.9 step 8, §6's OCSP config surface).
type NonceConfig struct {
	Occurrence string `yaml:"occurrence" validate:"omitempty,oneof=REQUIRED OPTIONAL FORBIDDEN"`
	MinLen     int    `yaml:"min_len" validate:"gte=0"`
	MaxLen     int    `yaml:"max_len" validate:"gtefield=MinLen"`
}

// CertPathValidationConfig configures how a signed OCSP request's
// signer certificate is chain-validated (spec.md §4.9 step 4), used
// only when SignatureRequired is set.
type CertPathValidationConfig struct {
	TrustAnchors     []string `yaml:"trust_anchors"`
	Certs            []string `yaml:"certs"`
	ValidationModel  string   `yaml:"validation_model" validate:"omitempty,oneof=PKIX CHAIN"`
}

// OCSPConfig configures the OCSP responder's request bounds and
// policy, spec.md §6's "OCSP: supportsHttpGet, signatureRequired,
// validateSignature, maxRequestListCount >= 1, maxRequestSize >= 100,
// versions, nonce, hashAlgorithms, certpathValidation" surface.
type OCSPConfig struct {
	SupportsHTTPGet     bool                     `yaml:"supports_http_get"`
	SignatureRequired   bool                     `yaml:"signature_required"`
	ValidateSignature   bool                     `yaml:"validate_signature"`
	MaxRequestListCount int                      `yaml:"max_request_list_count" validate:"required,gte=1"`
	MaxRequestSize      int                      `yaml:"max_request_size" validate:"required,gte=100"`
	Nonce               NonceConfig              `yaml:"nonce"`
	HashAlgorithms      []string                 `yaml:"hash_algorithms"`
	CertpathValidation  CertPathValidationConfig `yaml:"certpath_validation"`
}

// UIDConfig configures this process's uid.Generator shard (spec.md
// §4.1): EpochMs must be non-negative, ShardID must fit the 7-bit shard
// field ([0,127]).
type UIDConfig struct {
	EpochMs int64 `yaml:"epoch_ms" validate:"gte=0"`
	ShardID int   `yaml:"shard_id" validate:"gte=0,lte=127"`
}

// Config is the top-level schema this core's processes load at startup.
type Config struct {
	DBDriver  string      `yaml:"db_driver" validate:"required"`
	DBConnect string      `yaml:"db_connect" validate:"required"`
	Redis     RedisConfig `yaml:"redis"`
	S3        S3Config    `yaml:"s3"`
	CAs       []CAConfig  `yaml:"cas" validate:"required,min=1,dive"`
	OCSP      OCSPConfig  `yaml:"ocsp" validate:"required"`
	UID       UIDConfig   `yaml:"uid"`
	DebugAddr string      `yaml:"debug_addr"`
	SyslogTag string      `yaml:"syslog_tag"`
	Debug     bool        `yaml:"debug"`
}

// RedisConfig configures the OCSP response cache (github.com/go-redis/redis/v8).
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"`
}

// S3Config configures the certificate-publishing target.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

var validate = validator.New()

// Load reads and validates the YAML config at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validate %s: %w", path, err)
	}
	return &cfg, nil
}

// ParseDuration wraps time.ParseDuration with the field name in the
// error, since every *Config struct above stores durations as strings
// (YAML has no native duration type).
func ParseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: field %s: %w", field, err)
	}
	return d, nil
}

// String renders the config as indented JSON, for startup log lines
// that need the effective configuration without leaking PIN/Password.
func (c *Config) String() string {
	redacted := *c
	redacted.Redis.Password = "REDACTED"
	for i := range redacted.CAs {
		redacted.CAs[i].Key.PKCS11.PIN = "REDACTED"
	}
	b, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return fmt.Sprintf("<config: marshal error: %v>", err)
	}
	return string(b)
}
