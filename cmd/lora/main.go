// lora: pre-trains an MNIST perceptron, then adapts it with a low-rank
// correction on a label-restricted split while the base weights stay frozen.
//
// Usage:
//
//	lora --data=./data --rank=1 --steps=100 --subset=exclude --label=9
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"lora_lib/datasets/mnist"
	"lora_lib/device"
	"lora_lib/experiment"
	"lora_lib/utils"
)

var defaults = utils.DefaultConfig()

var (
	dataRoot   = flag.String("data", defaults.DataRoot, "MNIST directory (files or MNIST/raw/ under it)")
	download   = flag.Bool("download", defaults.Download, "Download missing MNIST files")
	mirror     = flag.String("mirror", mnist.DefaultMirror, "MNIST mirror base URL")
	deviceName = flag.String("device", defaults.Device, "Preferred device (falls back to cpu)")
	arch       = flag.String("arch", "784,1000,2000,10", "Layer widths: input,hidden1,hidden2,classes")
	batchSize  = flag.Int("batch", defaults.BatchSize, "Mini-batch size")
	seed       = flag.Uint64("seed", defaults.Seed, "Random seed")
	pretrainEp = flag.Int("pretrain-epochs", defaults.PretrainEpochs, "Pre-training epochs")
	adaptEp    = flag.Int("adapt-epochs", defaults.AdaptEpochs, "Adaptation epochs")
	steps      = flag.Int("steps", defaults.AdaptStepCap, "Adaptation step cap (0 = none)")
	rank       = flag.Int("rank", defaults.Rank, "Low-rank bottleneck width")
	alpha      = flag.Float64("alpha", defaults.Alpha, "Low-rank scale numerator")
	optimizer  = flag.String("optimizer", defaults.Optimizer, "Optimizer: adam, sgd")
	lr         = flag.Float64("lr", defaults.LearningRate, "Learning rate")
	subset     = flag.String("subset", defaults.SubsetMode, "Adaptation subset: exclude, only")
	label      = flag.Int("label", defaults.SubsetLabel, "Digit the subset mode applies to")
	heSamples  = flag.Int("he-samples", defaults.HESamples, "Test samples to run through the encrypted head (0 = skip)")
	logN       = flag.Int("logN", defaults.LogN, "Ring dimension log2 for the encrypted head")
	verbose    = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	architecture, err := utils.ParseArchitecture(*arch)
	if err != nil {
		fail(err)
	}
	cfg := utils.Config{
		DataRoot:       *dataRoot,
		Download:       *download,
		Device:         *deviceName,
		Architecture:   architecture,
		BatchSize:      *batchSize,
		Seed:           *seed,
		PretrainEpochs: *pretrainEp,
		AdaptEpochs:    *adaptEp,
		AdaptStepCap:   *steps,
		Rank:           *rank,
		Alpha:          *alpha,
		Optimizer:      *optimizer,
		LearningRate:   *lr,
		SubsetMode:     *subset,
		SubsetLabel:    *label,
		HESamples:      *heSamples,
		LogN:           *logN,
	}
	if err := utils.ValidateConfig(&cfg); err != nil {
		fail(err)
	}

	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                  LoRA on MNIST                               ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("  Architecture:  %v\n", cfg.Architecture)
	fmt.Printf("  Batch size:    %d\n", cfg.BatchSize)
	fmt.Printf("  Epochs:        %d pre-train, %d adapt (cap %d steps)\n", cfg.PretrainEpochs, cfg.AdaptEpochs, cfg.AdaptStepCap)
	fmt.Printf("  Rank/Alpha:    %d / %g\n", cfg.Rank, cfg.Alpha)
	fmt.Printf("  Optimizer:     %s (lr %g)\n", cfg.Optimizer, cfg.LearningRate)
	fmt.Printf("  Subset:        %s digit %d\n", cfg.SubsetMode, cfg.SubsetLabel)
	fmt.Printf("  Device:        %v\n", device.Select(cfg.Device))
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	trainSet, testSet, err := mnist.Load(ctx, mnist.Options{Root: cfg.DataRoot, Download: cfg.Download, Mirror: *mirror})
	if err != nil {
		fail(err)
	}
	loadTime := time.Since(start)
	fmt.Printf("Loaded %d train / %d test samples in %.2fs\n\n", trainSet.Len(), testSet.Len(), loadTime.Seconds())

	res, err := experiment.Run(ctx, cfg, trainSet, testSet, os.Stdout)
	if err != nil {
		fail(err)
	}
	res.Timing.DataLoadTime = loadTime
	res.Timing.TotalTime += loadTime
	utils.PrintTimingStats(&res.Timing)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
