package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/SwiftTim/hub2/internal/config"
	"github.com/SwiftTim/hub2/internal/watermark"
	"golang.org/x/term"
)

// watermark-verify checks the invisible watermark of a report offline.
// The secret is read from WATERMARK_SECRET or prompted for.
func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: watermark-verify <report.pdf>")
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	// Load .env the same way the server does.
	_ = config.Load()

	secret := os.Getenv("WATERMARK_SECRET")
	if secret == "" {
		fmt.Fprint(os.Stderr, "Watermark secret: ")
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error reading secret")
			os.Exit(1)
		}
		secret = string(b)
	}

	signer, err := watermark.NewSigner(secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	pdf, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	result := watermark.New(signer, time.UTC).Extract(pdf)

	out := struct {
		watermark.Extraction
		ContentHash string `json:"content_hash,omitempty"`
	}{Extraction: result}
	if result.Data != nil {
		// Matches generated_reports.document_hash for an unmodified file.
		out.ContentHash, _ = watermark.ContentHash(pdf, *result.Data)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)

	if !result.Valid {
		os.Exit(1)
	}
}
