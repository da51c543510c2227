// Package main provides the bpnet CLI: it trains a sigmoid network on MNIST
// with the software or the device backend.
//
// Usage:
//
//	go run ./cmd/bpnet -data mnist -backend device -epochs 32
//	go run ./cmd/bpnet version
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/bpnet/internal/backend/cpu"
	"github.com/born-ml/bpnet/internal/backend/device"
	"github.com/born-ml/bpnet/internal/dataset"
	"github.com/born-ml/bpnet/internal/nn"
	"github.com/born-ml/bpnet/internal/serialization"
	"github.com/born-ml/bpnet/internal/train"
)

const version = "v0.1.0-dev"

// MNIST file names inside the data directory.
const (
	trainLabels = "train-labels.idx1-ubyte"
	trainImages = "train-images.idx3-ubyte"
	testLabels  = "t10k-labels.idx1-ubyte"
	testImages  = "t10k-images.idx3-ubyte"
)

type options struct {
	backend string
	data    string
	hidden  string
	cost    string
	dot     string
	load    string
	save    string
	cfg     train.Config
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("bpnet %s\n", version)
		return
	}

	cfg := train.DefaultConfig()
	opts := options{cfg: cfg}
	rate := float64(cfg.Rate)
	flag.StringVar(&opts.backend, "backend", "cpu", "Compute backend: cpu, device or webgpu")
	flag.StringVar(&opts.data, "data", "mnist", "Directory holding the MNIST IDX files")
	flag.StringVar(&opts.hidden, "hidden", "30", "Comma-separated hidden layer widths")
	flag.StringVar(&opts.cost, "cost", cfg.Cost.String(), "Output cost: cross_entropy or quadratic")
	flag.StringVar(&opts.dot, "dot", "", "Write the network as Graphviz to this file (- for stdout)")
	flag.StringVar(&opts.load, "load", "", "Start from the parameters in this SafeTensors file")
	flag.StringVar(&opts.save, "save", "", "Write the trained parameters to this SafeTensors file")
	flag.IntVar(&opts.cfg.Epochs, "epochs", cfg.Epochs, "Number of training epochs")
	flag.IntVar(&opts.cfg.BatchSize, "batch", cfg.BatchSize, "Examples per weight update")
	flag.Float64Var(&rate, "rate", rate, "Learning rate")
	flag.Int64Var(&opts.cfg.Seed, "seed", cfg.Seed, "Initializer and shuffle seed")
	flag.BoolVar(&opts.cfg.Evaluate, "test", cfg.Evaluate, "Score the test set after every epoch")
	flag.Parse()
	opts.cfg.Rate = float32(rate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := log.New(os.Stdout, "", 0)
	if err := run(ctx, opts, logger); err != nil {
		log.Fatalf("bpnet: %v", err)
	}
}

func run(ctx context.Context, opts options, logger *log.Logger) error {
	hidden, err := parseHidden(opts.hidden)
	if err != nil {
		return err
	}
	opts.cfg.Hidden = hidden
	if opts.cfg.Cost, err = nn.ParseCost(opts.cost); err != nil {
		return err
	}
	if err := opts.cfg.Validate(); err != nil {
		return err
	}

	trainSet, err := dataset.Load(filepath.Join(opts.data, trainLabels), filepath.Join(opts.data, trainImages))
	if err != nil {
		return errors.Wrap(err, "train set")
	}
	var testSet *dataset.ImageSet
	if opts.cfg.Evaluate {
		testSet, err = dataset.Load(filepath.Join(opts.data, testLabels), filepath.Join(opts.data, testImages))
		if err != nil {
			return errors.Wrap(err, "test set")
		}
		if testSet.ImageWidth() != trainSet.ImageWidth() || testSet.ImageHeight() != trainSet.ImageHeight() {
			return errors.Errorf("test images are %dx%d, train images %dx%d",
				testSet.ImageWidth(), testSet.ImageHeight(), trainSet.ImageWidth(), trainSet.ImageHeight())
		}
	}
	logger.Printf("train set: %d images of %dx%d", trainSet.Count(), trainSet.ImageWidth(), trainSet.ImageHeight())

	factory, release, err := newFactory(opts.backend, opts.cfg.Seed)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			logger.Printf("release: %v", err)
		}
	}()
	logger.Printf("backend: %s", factory.Name())

	const classes = 10
	sizes := opts.cfg.Sizes(trainSet.ImageWidth()*trainSet.ImageHeight(), classes)
	net, err := nn.NewChain(factory, sizes, opts.cfg.Cost)
	if err != nil {
		return err
	}
	defer func() {
		if err := net.Release(); err != nil {
			logger.Printf("release network: %v", err)
		}
	}()

	if opts.load != "" {
		if err := serialization.LoadNetwork(opts.load, net); err != nil {
			return errors.Wrapf(err, "load %s", opts.load)
		}
		logger.Printf("loaded parameters from %s", opts.load)
	}
	if opts.dot != "" {
		if err := writeDot(net, opts.dot); err != nil {
			return err
		}
	}

	trainer, err := train.New(net, opts.cfg, logger)
	if err != nil {
		return err
	}
	var test train.Dataset
	if testSet != nil {
		test = testSet
	}
	if _, _, err := trainer.Run(ctx, trainSet, test); err != nil {
		return err
	}
	if opts.save != "" {
		if err := serialization.SaveNetwork(opts.save, net); err != nil {
			return errors.Wrapf(err, "save %s", opts.save)
		}
		logger.Printf("saved parameters to %s", opts.save)
	}
	return nil
}

// newFactory returns the backend called name and its release function.
func newFactory(name string, seed int64) (nn.Factory, func() error, error) {
	switch name {
	case "cpu":
		return cpu.NewFactory(cpu.WithSeed(seed)), func() error { return nil }, nil
	case "device":
		f := device.NewFactory(nil, device.WithSeed(seed))
		return f, f.Release, nil
	case "webgpu":
		exec, err := newWebGPUExecutor()
		if err != nil {
			return nil, nil, err
		}
		f := device.NewFactory(exec, device.WithSeed(seed))
		return f, f.Release, nil
	default:
		return nil, nil, errors.Errorf("unknown backend %q", name)
	}
}

func parseHidden(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var widths []int
	for _, field := range strings.Split(s, ",") {
		w, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, errors.Wrapf(err, "hidden width %q", field)
		}
		widths = append(widths, w)
	}
	return widths, nil
}

func writeDot(net *nn.Network, path string) error {
	dot, err := net.Dot()
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = fmt.Println(dot)
		return err
	}
	return os.WriteFile(path, []byte(dot), 0o644)
}
