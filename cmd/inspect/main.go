package main

import (
	"flag"
	"fmt"
	"os"

	"opschat/pkg/logger"
	"opschat/pkg/snapshot"
)

func main() {
	var p string
	flag.StringVar(&p, "path", "", "snapshot db path to dump")
	flag.Parse()
	if p == "" {
		fmt.Fprintln(os.Stderr, "--path required")
		os.Exit(2)
	}
	logger.Init()
	s, err := snapshot.Open(p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open snapshot: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()
	if err := s.Dump(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "dump failed: %v\n", err)
		os.Exit(1)
	}
}
