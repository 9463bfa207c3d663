package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kalamgit143/validAIte-sub004/pkg/audit"
	"github.com/kalamgit143/validAIte-sub004/pkg/certification"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

type trailReport struct {
	RequestID  string `json:"request_id"`
	EntryCount int    `json:"entry_count"`
	ChainHead  string `json:"chain_head"`
	Verified   bool   `json:"verified"`
	Reason     string `json:"reason,omitempty"`
}

// runVerifyTrailCmd checks an exported audit trail offline.
//
// Exit codes:
//
//	0 = verification passed
//	1 = verification failed
//	2 = runtime error
func runVerifyTrailCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify-trail", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		file       string
		jsonOutput bool
	)
	cmd.StringVar(&file, "file", "", "Path to exported audit trail JSON (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON to stdout")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if file == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --file is required")
		return 2
	}

	f, err := os.Open(file)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = f.Close() }()

	trail, err := audit.ReadTrail(f)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	report := trailReport{RequestID: trail.RequestID, EntryCount: len(trail.Entries), ChainHead: trail.ChainHead, Verified: true}
	if err := trail.Verify(); err != nil {
		report.Verified = false
		report.Reason = err.Error()
	}

	if jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	} else if report.Verified {
		_, _ = fmt.Fprintf(stdout, "%s✓ trail verified%s  request=%s entries=%d head=%s\n",
			ColorGreen, ColorReset, report.RequestID, report.EntryCount, report.ChainHead)
	} else {
		_, _ = fmt.Fprintf(stdout, "%s✗ trail verification failed%s  %s\n", ColorRed, ColorReset, report.Reason)
	}

	if !report.Verified {
		return 1
	}
	return 0
}

// runVerifyCertificateCmd recomputes a certificate's hash and, when a token
// and public key are supplied, checks the signed token against it.
func runVerifyCertificateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify-certificate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		file      string
		tokenFile string
		pubHex    string
		atFlag    string
	)
	cmd.StringVar(&file, "file", "", "Path to certificate JSON (REQUIRED)")
	cmd.StringVar(&atFlag, "at", "", "RFC 3339 time the certificate must be valid at (default: now)")
	cmd.StringVar(&tokenFile, "token", "", "Path to the certificate's signed token")
	cmd.StringVar(&pubHex, "public-key", "", "Hex Ed25519 public key for --token")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if file == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --file is required")
		return 2
	}
	if (tokenFile == "") != (pubHex == "") {
		_, _ = fmt.Fprintln(stderr, "Error: --token and --public-key must be used together")
		return 2
	}
	at := time.Now()
	if atFlag != "" {
		parsed, err := time.Parse(time.RFC3339, atFlag)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: --at: %v\n", err)
			return 2
		}
		at = parsed
	}

	data, err := os.ReadFile(file)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	var cert contracts.AuthorizationCertificate
	if err := json.Unmarshal(data, &cert); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: invalid certificate JSON: %v\n", err)
		return 2
	}

	if err := certification.Verify(&cert); err != nil {
		_, _ = fmt.Fprintf(stdout, "%s✗ certificate %s failed verification%s  %v\n", ColorRed, cert.CertificateID, ColorReset, err)
		return 1
	}
	if !certification.IssuedWithin(&cert, at) {
		_, _ = fmt.Fprintf(stdout, "%s✗ certificate %s not valid at %s%s\n",
			ColorRed, cert.CertificateID, at.UTC().Format(time.RFC3339), ColorReset)
		return 1
	}

	if tokenFile != "" {
		raw, err := os.ReadFile(tokenFile)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		pub, err := hex.DecodeString(pubHex)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			_, _ = fmt.Fprintln(stderr, "Error: --public-key must be a hex Ed25519 public key")
			return 2
		}
		if err := certification.VerifyToken(&cert, strings.TrimSpace(string(raw)), ed25519.PublicKey(pub)); err != nil {
			_, _ = fmt.Fprintf(stdout, "%s✗ token rejected%s  %v\n", ColorRed, ColorReset, err)
			return 1
		}
	}

	_, _ = fmt.Fprintf(stdout, "%s✓ certificate verified%s  id=%s decision=%q hash=%s\n",
		ColorGreen, ColorReset, cert.CertificateID, cert.Decision, cert.CertificateHash)
	return 0
}
