// Package main bootstraps the TLS material of a deployment: a CA, the
// server certificate and the first approver certificate.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atinyakov/zkkeeper/internal/certgen"
)

type options struct {
	dir      string
	hosts    string
	approver string
	caName   string
}

func main() {
	var o options
	flag.StringVar(&o.dir, "out", "certs", "output directory")
	flag.StringVar(&o.hosts, "hosts", "localhost,127.0.0.1", "comma-separated server hosts")
	flag.StringVar(&o.approver, "approver", "admin", "login of the bootstrap approver")
	flag.StringVar(&o.caName, "ca-name", "zkkeeper CA", "CA common name")
	flag.Parse()

	if err := run(o); err != nil {
		fmt.Fprintf(os.Stderr, "certgen: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Certificates generated into %s\n", o.dir)
}

func run(o options) error {
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(o.dir, certgen.CAKeyFile)); err == nil {
		return fmt.Errorf("%s already holds a CA", o.dir)
	}

	ca, caPair, err := certgen.NewCA(o.caName)
	if err != nil {
		return err
	}
	if err := caPair.WriteFiles(filepath.Join(o.dir, certgen.CACertFile), filepath.Join(o.dir, certgen.CAKeyFile)); err != nil {
		return err
	}

	server, err := ca.IssueServer(splitHosts(o.hosts)...)
	if err != nil {
		return err
	}
	if err := server.WriteFiles(filepath.Join(o.dir, certgen.ServerCertFile), filepath.Join(o.dir, certgen.ServerKeyFile)); err != nil {
		return err
	}

	approver, err := ca.IssueApprover(o.approver)
	if err != nil {
		return err
	}
	return approver.WriteFiles(filepath.Join(o.dir, o.approver+".crt"), filepath.Join(o.dir, o.approver+".key"))
}

func splitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
