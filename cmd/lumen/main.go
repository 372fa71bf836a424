// Package main provides the Lumen binding CLI.
package main

import (
	"fmt"
	"os"

	"github.com/lumen-ml/lumen/engine/native"
	"github.com/lumen-ml/lumen/internal/serialization"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "version":
		err = cmdVersion()
	case "devices":
		err = cmdDevices()
	case "inspect":
		if len(os.Args) < 3 {
			err = fmt.Errorf("inspect: missing file argument")
		} else {
			err = cmdInspect(os.Args[2])
		}
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "lumen:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Lumen - Go binding for the Lumen tensor engine")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version          Show binding and engine versions")
	fmt.Println("  devices          List devices reported by the engine")
	fmt.Println("  inspect <file>   Describe the arrays in a .lmnc container")
}

func cmdVersion() error {
	fmt.Printf("Lumen binding %s\n", version)
	eng, err := native.Load("")
	if err != nil {
		fmt.Println("Engine: not loaded")
		return nil
	}
	v, err := eng.Version()
	if err != nil {
		return err
	}
	fmt.Printf("Engine: %s %s\n", eng.Name(), v)
	return nil
}

func cmdDevices() error {
	eng, err := native.Load("")
	if err != nil {
		return err
	}
	devices, err := eng.Devices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Printf("%s(%d)  %s\n", d.Kind, d.ID, d.Name)
	}
	return nil
}

func cmdInspect(path string) error {
	r, err := serialization.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	h := r.Header()
	fmt.Printf("format v%d, created by %q at %s\n", h.FormatVersion, h.CreatedBy, h.CreatedAt)
	if err := r.VerifyChecksum(); err != nil {
		fmt.Println("checksum: MISMATCH")
	} else if h.Checksum != "" {
		fmt.Println("checksum: ok")
	}
	for _, name := range r.Names() {
		meta, err := r.Meta(name)
		if err != nil {
			return err
		}
		fmt.Printf("  %-24s %-8s %v  (%d bytes)\n", meta.Name, meta.DType, meta.Shape, meta.Size)
	}
	return nil
}
