// Package main writes a self-signed server certificate and key for a
// panel, for operators who want to pin or distribute the pair up front.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/DanielTwine/dloperOS/internal/certgen"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "certgen:", err)
		os.Exit(1)
	}
}

// run parses args and writes server.crt and server.key into -dir.
// Existing files are kept unless -force is set.
func run(args []string, out io.Writer) error {
	fset := flag.NewFlagSet("certgen", flag.ContinueOnError)
	dir := fset.String("dir", filepath.Join("config", "tls"), "output directory")
	hosts := fset.String("hosts", "localhost,127.0.0.1", "comma separated DNS names and IPs")
	force := fset.Bool("force", false, "replace existing files")
	if err := fset.Parse(args); err != nil {
		return err
	}

	certPath := filepath.Join(*dir, "server.crt")
	keyPath := filepath.Join(*dir, "server.key")
	if *force {
		for _, p := range []string{certPath, keyPath} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}

	var names []string
	for _, h := range strings.Split(*hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			names = append(names, h)
		}
	}
	created, err := certgen.EnsureSelfSigned(certPath, keyPath, names)
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintf(out, "Keeping existing certificate in %s (use -force to replace)\n", *dir)
		return nil
	}
	fmt.Fprintf(out, "Certificate and key written to %s\n", *dir)
	return nil
}
