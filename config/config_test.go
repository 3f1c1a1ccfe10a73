package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
db_driver: mysql
db_connect: "user:pass@tcp(127.0.0.1:3306)/corepki"
cas:
  - name: root-ca
    ca_id: 1
    cert_file: testdata/root.pem
    key:
      file: testdata/root.key
    parallelism: 2
    lifespan_ocsp: 4h
    crl_validity: 24h
    crl_retain_generations: 3
    validity_mode: STRICT
    profiles:
      - name: server
        validity: 2160h
        max_names: 100
        key_usages: ["digitalSignature", "keyEncipherment"]
ocsp:
  max_request_list_count: 1
  max_request_size: 10240
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTemp(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.CAs) != 1 || cfg.CAs[0].Name != "root-ca" {
		t.Fatalf("unexpected CAs: %+v", cfg.CAs)
	}
	if len(cfg.CAs[0].Profiles) != 1 || cfg.CAs[0].Profiles[0].Name != "server" {
		t.Fatalf("unexpected profiles: %+v", cfg.CAs[0].Profiles)
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	path := writeTemp(t, "db_driver: mysql\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for missing required fields")
	}
}

func TestParseDurationWrapsFieldName(t *testing.T) {
	if _, err := ParseDuration("lifespan_ocsp", "not-a-duration"); err == nil {
		t.Fatalf("expected an error for an invalid duration string")
	}
	d, err := ParseDuration("lifespan_ocsp", "4h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Hours() != 4 {
		t.Fatalf("expected 4h, got %v", d)
	}
}

func TestStringRedactsSecrets(t *testing.T) {
	path := writeTemp(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Redis.Password = "super-secret"
	cfg.CAs[0].Key.PKCS11.PIN = "1234"
	out := cfg.String()
	if strings.Contains(out, "super-secret") || strings.Contains(out, "1234") {
		t.Fatalf("expected secrets to be redacted from String() output, got %s", out)
	}
}
