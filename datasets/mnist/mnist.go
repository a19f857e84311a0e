// Package mnist loads the MNIST handwritten digit dataset from IDX files,
// optionally fetching them from a mirror first.
package mnist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const (
	ImgSize    = 28
	NumClasses = 10

	// Mean and Std are the training-set pixel statistics used for normalization.
	Mean = 0.1307
	Std  = 0.3081

	// DefaultMirror serves the gzip'd IDX files.
	DefaultMirror = "https://storage.googleapis.com/cvdf-datasets/mnist/"
)

const (
	trainSetImg = "train-images-idx3-ubyte.gz"
	trainSetVal = "train-labels-idx1-ubyte.gz"
	inferSetImg = "t10k-images-idx3-ubyte.gz"
	inferSetVal = "t10k-labels-idx1-ubyte.gz"
)

// PinnedDigests are the sha256 sums of the canonical gzip files.
var PinnedDigests = map[string]string{
	trainSetImg: "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609",
	trainSetVal: "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c",
	inferSetImg: "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6",
	inferSetVal: "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6",
}

// Options controls where the files are looked up and whether they may be fetched.
type Options struct {
	Root     string // searched as Root/<file> and Root/MNIST/raw/<file>
	Download bool
	Mirror   string            // defaults to DefaultMirror
	Digests  map[string]string // defaults to PinnedDigests; files without an entry are not verified
}

func (o Options) mirror() string {
	if o.Mirror == "" {
		return DefaultMirror
	}
	return o.Mirror
}

func (o Options) digests() map[string]string {
	if o.Digests == nil {
		return PinnedDigests
	}
	return o.Digests
}

// Load returns the train and test splits.
func Load(ctx context.Context, opts Options) (train, test *Dataset, err error) {
	train, err = LoadSplit(ctx, opts, true)
	if err != nil {
		return nil, nil, err
	}
	test, err = LoadSplit(ctx, opts, false)
	if err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

// LoadSplit returns the train split when train is set, the test split otherwise.
func LoadSplit(ctx context.Context, opts Options, train bool) (*Dataset, error) {
	imgName, valName := inferSetImg, inferSetVal
	if train {
		imgName, valName = trainSetImg, trainSetVal
	}
	imgPath, err := locate(ctx, opts, imgName)
	if err != nil {
		return nil, err
	}
	valPath, err := locate(ctx, opts, valName)
	if err != nil {
		return nil, err
	}
	images, rows, cols, err := readImages(imgPath)
	if err != nil {
		return nil, fmt.Errorf("mnist: %s: %w", imgPath, err)
	}
	labels, err := readLabels(valPath)
	if err != nil {
		return nil, fmt.Errorf("mnist: %s: %w", valPath, err)
	}
	if len(images) != len(labels) {
		return nil, fmt.Errorf("mnist: %d images but %d labels", len(images), len(labels))
	}
	for i, l := range labels {
		if int(l) >= NumClasses {
			return nil, fmt.Errorf("mnist: label %d at index %d out of range", l, i)
		}
	}
	return &Dataset{Images: images, Labels: labels, Rows: rows, Cols: cols}, nil
}

// locate finds name under the search directories, downloading it into Root
// when allowed, and verifies its digest when one is known.
func locate(ctx context.Context, opts Options, name string) (string, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	for _, dir := range []string{root, filepath.Join(root, "MNIST", "raw")} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			if err := verify(path, opts.digests()[name]); err != nil {
				return "", err
			}
			return path, nil
		}
	}
	if !opts.Download {
		return "", fmt.Errorf("mnist: %s not found under %s and download disabled", name, root)
	}
	path := filepath.Join(root, name)
	if err := download(ctx, opts.mirror()+name, path, opts.digests()[name]); err != nil {
		return "", err
	}
	return path, nil
}
