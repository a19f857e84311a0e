// Package experiment wires the full low-rank adaptation run together:
// pre-train, snapshot, bind, freeze, adapt on a restricted split, evaluate.
package experiment

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/exp/rand"

	"lora_lib/core/ckkswrapper"
	"lora_lib/datasets/mnist"
	"lora_lib/lora"
	"lora_lib/model"
	"lora_lib/nn"
	"lora_lib/split"
	"lora_lib/tensor"
	"lora_lib/train"
	"lora_lib/utils"
)

// Result collects everything a run reports.
type Result struct {
	Pretrained  train.Result
	PretrainRun train.Stats
	Report      lora.Report
	Frozen      []string
	AdaptSize   int
	AdaptRun    train.Stats
	Adapted     train.Result
	Disabled    train.Result
	BaseChanged []string // base parameters that differ from the post-pre-training snapshot
	HE          *HECheck
	Timing      utils.TimingStats
}

// HECheck compares encrypted and plaintext output-layer logits.
type HECheck struct {
	Samples   int
	MaxAbsErr float64
	Agree     int // samples whose argmax matches
}

// Run executes the experiment on the given splits. All randomness comes from
// one source seeded with cfg.Seed.
func Run(ctx context.Context, cfg utils.Config, trainSet, testSet *mnist.Dataset, w io.Writer) (*Result, error) {
	if err := utils.ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	if w == nil {
		w = io.Discard
	}
	res := &Result{}
	start := time.Now()
	defer func() { res.Timing.TotalTime = time.Since(start) }()

	rng := rand.New(rand.NewSource(cfg.Seed))

	t0 := time.Now()
	net, err := model.NewClassifier(cfg.Architecture[1], cfg.Architecture[2], rng)
	if err != nil {
		return nil, err
	}
	res.Timing.ModelInitTime = time.Since(t0)
	fmt.Fprintf(w, "Model: %s\n", net.Summary())

	opts := train.Options{
		Epochs:       cfg.PretrainEpochs,
		Optimizer:    cfg.Optimizer,
		LearningRate: cfg.LearningRate,
		Output:       w,
	}
	testLoader := mnist.NewLoader(testSet, cfg.BatchSize, false, nil)

	fmt.Fprintf(w, "Pre-training on %d samples\n", trainSet.Len())
	t0 = time.Now()
	res.PretrainRun, err = train.Train(ctx, mnist.NewLoader(trainSet, cfg.BatchSize, true, rng), net, opts)
	if err != nil {
		return nil, fmt.Errorf("pre-training: %w", err)
	}
	res.Timing.PretrainTime = time.Since(t0)
	res.Timing.PretrainSteps = res.PretrainRun.Steps

	snapshot := nn.TakeSnapshot(net.Parameters())

	if res.Pretrained, err = evaluate(ctx, testLoader, net, w, &res.Timing); err != nil {
		return nil, err
	}

	if _, err := lora.Register(net.Linears(), cfg.Rank, cfg.Alpha, rng); err != nil {
		return nil, fmt.Errorf("register low-rank correction: %w", err)
	}
	if res.Report, err = lora.Account(net.Linears()); err != nil {
		return nil, err
	}
	res.Report.Print(w)

	res.Frozen = lora.Freeze(net.Parameters())
	for _, name := range res.Frozen {
		fmt.Fprintf(w, "Freezing non-LoRA parameter %s\n", name)
	}

	adaptSet := trainSet.Clone()
	res.AdaptSize = adaptSet.Retain(cfg.SubsetFilter())
	fmt.Fprintf(w, "Adapting on %d samples (%s digit %d)\n", res.AdaptSize, cfg.SubsetMode, cfg.SubsetLabel)

	opts.Epochs = cfg.AdaptEpochs
	opts.StepCap = cfg.AdaptStepCap
	t0 = time.Now()
	res.AdaptRun, err = train.Train(ctx, mnist.NewLoader(adaptSet, cfg.BatchSize, true, rng), net, opts)
	if err != nil {
		return nil, fmt.Errorf("adaptation: %w", err)
	}
	res.Timing.AdaptTime = time.Since(t0)
	res.Timing.AdaptSteps = res.AdaptRun.Steps

	fmt.Fprintln(w, "With LoRA enabled:")
	if res.Adapted, err = evaluate(ctx, testLoader, net, w, &res.Timing); err != nil {
		return nil, err
	}
	lora.SetEnabled(net.Linears(), false)
	fmt.Fprintln(w, "With LoRA disabled:")
	if res.Disabled, err = evaluate(ctx, testLoader, net, w, &res.Timing); err != nil {
		return nil, err
	}
	lora.SetEnabled(net.Linears(), true)

	res.BaseChanged = snapshot.Changed(net.Parameters())
	if len(res.BaseChanged) == 0 {
		fmt.Fprintln(w, "Base weights unchanged since pre-training")
	} else {
		fmt.Fprintf(w, "Base weights changed: %v\n", res.BaseChanged)
	}

	if cfg.HESamples > 0 {
		if res.HE, err = checkEncryptedHead(cfg, net, testSet, &res.Timing); err != nil {
			return nil, fmt.Errorf("encrypted head: %w", err)
		}
		fmt.Fprintf(w, "Encrypted head: %d samples, max |logit error| %.2e, argmax agreement %d/%d\n",
			res.HE.Samples, res.HE.MaxAbsErr, res.HE.Agree, res.HE.Samples)
	}
	return res, nil
}

func evaluate(ctx context.Context, loader *mnist.Loader, net nn.Module, w io.Writer, stats *utils.TimingStats) (train.Result, error) {
	defer utils.Track(&stats.EvaluationTime, time.Now())
	r, err := train.Evaluate(ctx, loader, net, w)
	if err != nil {
		return r, err
	}
	r.Print(w)
	return r, nil
}

// checkEncryptedHead runs the adapted output layer under CKKS on the first
// cfg.HESamples test images and compares against the plaintext logits.
func checkEncryptedHead(cfg utils.Config, net *model.Classifier, testSet *mnist.Dataset, stats *utils.TimingStats) (*HECheck, error) {
	n := cfg.HESamples
	if n > testSet.Len() {
		n = testSet.Len()
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	x, _, err := testSet.Batch(idx)
	if err != nil {
		return nil, err
	}
	hidden, err := net.Hidden(x)
	if err != nil {
		return nil, err
	}
	want, err := net.Linear3.Forward(hidden)
	if err != nil {
		return nil, err
	}

	t0 := time.Now()
	he, err := ckkswrapper.NewHeContextWithLogN(cfg.LogN)
	if err != nil {
		return nil, err
	}
	layout, err := split.NewLayout(net.Linear3.InDim(), net.Linear3.OutDim(), he.Params.MaxSlots())
	if err != nil {
		return nil, err
	}
	server, err := split.NewHeadServer(he.GenServerKit(layout.Rotations()), net.Linear3)
	if err != nil {
		return nil, err
	}
	client := split.NewHeadClient(he, layout)
	stats.HEInitTime = time.Since(t0)

	width := hidden.Shape[1]
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = hidden.Data[i*width : (i+1)*width]
	}
	t0 = time.Now()
	got, err := split.RunLocal(client, server, rows)
	if err != nil {
		return nil, err
	}
	stats.HEEvalTime = time.Since(t0)

	check := &HECheck{Samples: n}
	classes := want.Shape[1]
	gotT := tensor.New(n, classes)
	for i := range got {
		copy(gotT.Data[i*classes:], got[i])
		for j, v := range got[i] {
			check.MaxAbsErr = math.Max(check.MaxAbsErr, math.Abs(v-want.Data[i*classes+j]))
		}
	}
	wantArg, gotArg := nn.Argmax(want), nn.Argmax(gotT)
	for i := range wantArg {
		if wantArg[i] == gotArg[i] {
			check.Agree++
		}
	}
	return check, nil
}
