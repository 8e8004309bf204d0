// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// imagerecords builds TFRecord datasets from directories of images, transforms them into model inputs and
// inspects the results.
//
// Usage:
//
//	imagerecords classification [-config file.yaml] [-data dir] [-split train,test] [-manifest]
//	imagerecords segmentation [-config file.yaml] [-validate_pairs] [-atomic]
//	imagerecords transform -kind segmentation [-split train]
//	imagerecords inspect [-schema classification] file.tfrecords...
//
// Each subcommand accepts -help for the full list of flags, including klog's (-v, -logtostderr, ...).
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/imagerecords/pkg/config"
	"github.com/gomlx/imagerecords/pkg/support/xslices"
	"github.com/gomlx/imagerecords/pkg/tfrecord"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

type command struct {
	name, help string
	run        func(args []string)
}

var commands = []command{
	{"classification", "Build the classification TFRecord files, one per split.", runClassification},
	{"segmentation", "Build the segmentation TFRecord files, one per split.", runSegmentation},
	{"transform", "Transform built TFRecord files into model inputs.", runTransform},
	{"inspect", "Print statistics of TFRecord files and validate them against a schema.", runInspect},
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: imagerecords <command> [flags]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-16s %s\n", cmd.name, cmd.help)
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	idx := slices.IndexFunc(commands, func(cmd command) bool { return cmd.name == os.Args[1] })
	if idx < 0 {
		klog.Errorf("Unknown command %q.", os.Args[1])
		usage()
		os.Exit(2)
	}
	err := exceptions.TryCatch[error](func() { commands[idx].run(os.Args[2:]) })
	if err != nil {
		klog.Fatalf("Failed with error: %+v", err)
	}
}

// datasetFlags are the flags shared by the commands that read the configuration.
type datasetFlags struct {
	config, dataDir, compression *string
	splits                       *[]string
}

// newFlagSet creates the flag set of a command, with klog's flags registered.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	klog.InitFlags(fs)
	return fs
}

func addDatasetFlags(fs *flag.FlagSet) *datasetFlags {
	return &datasetFlags{
		config: fs.String("config", "", "YAML configuration file. If empty the default configuration is used."),
		dataDir: fs.String("data", "", "Base directory of the relative paths of the configuration. "+
			"If set, it overrides the configured data_dir."),
		splits: xslices.FlagVar(fs, "split", nil, "Comma-separated list of splits to process. If empty, all configured splits.",
			func(name string) (string, error) { return name, nil }),
		compression: fs.String("compression", "", `Compression of the generated TFRecord files, "none" or "gzip". `+
			"If set, it overrides the configured compression."),
	}
}

// load returns the configuration with the flag overrides applied.
func (df *datasetFlags) load() *config.Config {
	cfg := config.Default()
	if *df.config != "" {
		cfg = must.M1(config.Load(*df.config))
	}
	if *df.dataDir != "" {
		cfg.DataDir = *df.dataDir
	}
	if *df.compression != "" {
		cfg.Compression = must.M1(tfrecord.ParseCompression(*df.compression))
	}
	must.M(cfg.Validate())
	return cfg
}

// selectSplits returns the configured splits listed in -split, in the order given, or all of them if the
// flag is empty.
func (df *datasetFlags) selectSplits(splits []config.Split) []config.Split {
	if len(*df.splits) == 0 {
		return splits
	}
	return xslices.Map(*df.splits, func(name string) config.Split {
		return must.M1(config.FindSplit(splits, name))
	})
}
