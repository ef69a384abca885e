package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jerbob92/go-qglib/generator/generator"
)

var (
	fileName string
	typeName *string
	output   *string
)

func init() {
	fileName = os.Getenv("GOFILE")
	typeName = flag.String("type", "", "the struct that declares the signals")
	output = flag.String("output", "", "the file to write, defaults to <type>_qglib.go")
}

func Usage() {
	fmt.Fprintf(os.Stderr, "Usage of qglib-gen:\n")
	fmt.Fprintf(os.Stderr, "\t//go:generate go run github.com/jerbob92/go-qglib/generator -type=PlayerSignals\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = Usage
	flag.Parse()

	if *typeName == "" {
		flag.Usage()
		os.Exit(2)
	}
	if fileName == "" {
		log.Fatal("GOFILE is not set, run qglib-gen through go generate")
	}

	dir, err := filepath.Abs(".")
	if err != nil {
		log.Fatal(err)
	}

	err = generator.Generate(dir, fileName, *typeName, *output)
	if err != nil {
		log.Fatal(err)
	}
}
