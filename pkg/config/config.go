// Package config loads the server configuration from the environment.
package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds server configuration.
//
//nolint:govet // fieldalignment: grouped by concern
type Config struct {
	Port       string
	HealthPort string
	LogLevel   string

	// Persistence. LiteMode selects SQLite at SQLitePath instead of Postgres.
	DatabaseURL string
	LiteMode    bool
	SQLitePath  string
	RedisAddr   string

	// Keys, hex encoded. Empty disables the dependent feature.
	JWTPublicKeyHex      string
	CertSigningKeyHex    string
	CertKeyID            string
	ApprovalMasterKeyHex string

	// Artifact archive.
	ArtifactStorageType string
	DataDir             string
	S3Bucket            string
	S3Region            string
	S3Endpoint          string
	S3Prefix            string
	GCSBucket           string
	GCSPrefix           string

	// Telemetry.
	OTelEnabled     bool
	OTelEndpoint    string
	OTelInsecure    bool
	OTelServiceName string
	Environment     string

	// HTTP boundary.
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string

	// Reference data.
	DirectoryFile   string
	PolicyRulesFile string
	EvidenceDir     string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:       getenv("PORT", "8080"),
		HealthPort: getenv("HEALTH_PORT", "8081"),
		LogLevel:   strings.ToUpper(getenv("LOG_LEVEL", "INFO")),

		DatabaseURL: getenv("DATABASE_URL", "postgres://helm@localhost:5433/helm_authz?sslmode=disable"),
		LiteMode:    os.Getenv("LITE_MODE") == "true",
		SQLitePath:  getenv("SQLITE_PATH", "data/helm-authz.db"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		JWTPublicKeyHex:      os.Getenv("JWT_PUBLIC_KEY_HEX"),
		CertSigningKeyHex:    os.Getenv("CERT_SIGNING_KEY_HEX"),
		CertKeyID:            getenv("CERT_KEY_ID", "cert-1"),
		ApprovalMasterKeyHex: os.Getenv("APPROVAL_MASTER_KEY_HEX"),

		ArtifactStorageType: getenv("ARTIFACT_STORAGE_TYPE", "fs"),
		DataDir:             getenv("DATA_DIR", "data"),
		S3Bucket:            os.Getenv("S3_BUCKET"),
		S3Region:            getenv("S3_REGION", "us-east-1"),
		S3Endpoint:          os.Getenv("S3_ENDPOINT"),
		S3Prefix:            os.Getenv("S3_PREFIX"),
		GCSBucket:           os.Getenv("GCS_BUCKET"),
		GCSPrefix:           os.Getenv("GCS_PREFIX"),

		OTelEnabled:     os.Getenv("OTEL_ENABLED") == "true",
		OTelEndpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelInsecure:    os.Getenv("OTEL_INSECURE") == "true",
		OTelServiceName: getenv("OTEL_SERVICE_NAME", "helm-authz"),
		Environment:     getenv("ENVIRONMENT", "development"),

		RateLimitRPS:   getfloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getint("RATE_LIMIT_BURST", 40),
		CORSOrigins:    splitList(os.Getenv("CORS_ORIGINS")),

		DirectoryFile:   os.Getenv("DIRECTORY_FILE"),
		PolicyRulesFile: os.Getenv("POLICY_RULES_FILE"),
		EvidenceDir:     os.Getenv("EVIDENCE_DIR"),
	}
}

// JWTPublicKey decodes JWTPublicKeyHex. It returns nil when unset.
func (c *Config) JWTPublicKey() (ed25519.PublicKey, error) {
	if c.JWTPublicKeyHex == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(c.JWTPublicKeyHex)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("config: JWT_PUBLIC_KEY_HEX must be %d hex-encoded bytes", ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// CertSigningKey decodes CertSigningKeyHex as an Ed25519 seed or full private
// key. It returns nil when unset.
func (c *Config) CertSigningKey() (ed25519.PrivateKey, error) {
	if c.CertSigningKeyHex == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(c.CertSigningKeyHex)
	if err != nil {
		return nil, fmt.Errorf("config: CERT_SIGNING_KEY_HEX: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	}
	return nil, fmt.Errorf("config: CERT_SIGNING_KEY_HEX has invalid length %d", len(raw))
}

// ApprovalMasterKey decodes ApprovalMasterKeyHex. It returns nil when unset.
func (c *Config) ApprovalMasterKey() ([]byte, error) {
	if c.ApprovalMasterKeyHex == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(c.ApprovalMasterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("config: APPROVAL_MASTER_KEY_HEX: %w", err)
	}
	return raw, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getfloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v > 0 {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
