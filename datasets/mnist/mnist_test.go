package mnist

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func gzIDX(t *testing.T, header []uint32, body []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	require.NoError(t, binary.Write(gz, binary.BigEndian, header))
	_, err := gz.Write(body)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// syntheticFiles returns gzip'd IDX files holding n 2x2 images whose pixels
// all equal the sample index, labelled i%10.
func syntheticFiles(t *testing.T, n int) (images, labels []byte) {
	pix := make([]byte, 0, n*4)
	lbl := make([]byte, n)
	for i := 0; i < n; i++ {
		pix = append(pix, byte(i), byte(i), byte(i), byte(i))
		lbl[i] = byte(i % NumClasses)
	}
	return gzIDX(t, []uint32{imageMagic, uint32(n), 2, 2}, pix),
		gzIDX(t, []uint32{labelMagic, uint32(n)}, lbl)
}

func writeSplit(t *testing.T, dir string, train bool, n int) {
	t.Helper()
	img, lbl := syntheticFiles(t, n)
	imgName, valName := inferSetImg, inferSetVal
	if train {
		imgName, valName = trainSetImg, trainSetVal
	}
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, imgName), img, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, valName), lbl, 0o644))
}

func TestLoadFromRootAndRawDir(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, true, 25)
	writeSplit(t, filepath.Join(root, "MNIST", "raw"), false, 12)

	train, test, err := Load(context.Background(), Options{Root: root, Digests: map[string]string{}})
	require.NoError(t, err)
	require.Equal(t, 25, train.Len())
	require.Equal(t, 12, test.Len())
	require.Equal(t, 2, train.Rows)
	require.Equal(t, 2, train.Cols)
	require.Equal(t, []byte{7, 7, 7, 7}, train.Images[7])
	require.Equal(t, uint8(3), test.Labels[3])
}

func TestLoadMissingWithoutDownload(t *testing.T) {
	_, err := LoadSplit(context.Background(), Options{Root: t.TempDir()}, true)
	require.Error(t, err)
	require.Contains(t, err.Error(), trainSetImg)
}

func TestLoadRejectsDigestMismatch(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, false, 3)
	_, err := LoadSplit(context.Background(), Options{Root: root}, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "sha256")
}

func TestParseRejectsBadMagic(t *testing.T) {
	_, _, _, err := parseImages(bytes.NewReader([]byte{0, 0, 8, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}))
	require.Error(t, err)
	_, err = parseLabels(bytes.NewReader([]byte{0, 0, 8, 3, 0, 0, 0, 0}))
	require.Error(t, err)
	_, err = parseLabels(bytes.NewReader([]byte{0, 0, 8, 1, 0, 0, 0, 5, 1}))
	require.Error(t, err)
}

func TestDownloadVerifiesDigest(t *testing.T) {
	img, lbl := syntheticFiles(t, 4)
	files := map[string][]byte{inferSetImg: img, inferSetVal: lbl}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[filepath.Base(r.URL.Path)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	sum := func(b []byte) string {
		h := sha256.Sum256(b)
		return hex.EncodeToString(h[:])
	}
	root := t.TempDir()
	opts := Options{
		Root:     root,
		Download: true,
		Mirror:   srv.URL + "/",
		Digests:  map[string]string{inferSetImg: sum(img), inferSetVal: sum(lbl)},
	}
	d, err := LoadSplit(context.Background(), opts, false)
	require.NoError(t, err)
	require.Equal(t, 4, d.Len())
	require.FileExists(t, filepath.Join(root, inferSetImg))

	opts.Root = t.TempDir()
	opts.Digests = map[string]string{inferSetImg: sum(lbl)}
	_, err = LoadSplit(context.Background(), opts, false)
	require.Error(t, err)
	entries, _ := os.ReadDir(opts.Root)
	require.Empty(t, entries)

	opts.Digests = map[string]string{}
	_, err = LoadSplit(context.Background(), opts, true)
	require.Error(t, err)
}

func TestRetainAndClone(t *testing.T) {
	d := &Dataset{Rows: 1, Cols: 1}
	for i := 0; i < 30; i++ {
		d.Images = append(d.Images, []byte{byte(i)})
		d.Labels = append(d.Labels, uint8(i%NumClasses))
	}
	c := d.Clone()
	n := c.Retain(func(l int) bool { return l != 9 })
	require.Equal(t, 27, n)
	require.Equal(t, 30, d.Len())
	for _, l := range c.Labels {
		require.NotEqual(t, uint8(9), l)
	}
	require.Equal(t, []byte{10}, c.Images[9])
	require.Equal(t, 0, c.ClassCounts()[9])
	require.Equal(t, 3, d.ClassCounts()[9])

	only := d.Clone()
	require.Equal(t, 3, only.Retain(func(l int) bool { return l == 9 }))
	require.Equal(t, []byte{29}, only.Images[2])
}

func TestBatchNormalizes(t *testing.T) {
	d := &Dataset{Images: [][]byte{{0, 255}, {51, 102}}, Labels: []uint8{4, 2}, Rows: 1, Cols: 2}
	x, y, err := d.Batch([]int{1, 0})
	require.NoError(t, err)
	require.Equal(t, []int{2, 1, 1, 2}, x.Shape)
	require.Equal(t, []int{2, 4}, y)
	require.InDelta(t, (0.2-Mean)/Std, x.Data[0], 1e-12)
	require.InDelta(t, -Mean/Std, x.Data[2], 1e-12)
	require.InDelta(t, (1-Mean)/Std, x.Data[3], 1e-12)

	_, _, err = d.Batch([]int{2})
	require.Error(t, err)
}

func TestLoaderCoversEverySampleOnce(t *testing.T) {
	d := &Dataset{Rows: 1, Cols: 1}
	for i := 0; i < 23; i++ {
		d.Images = append(d.Images, []byte{byte(i)})
		d.Labels = append(d.Labels, uint8(i%NumClasses))
	}
	l := NewLoader(d, 10, true, rand.New(rand.NewSource(0)))
	require.Equal(t, 3, l.NumBatches())

	seen := map[float64]bool{}
	var sizes []int
	ep := l.Epoch()
	for {
		x, y, ok := ep.Next()
		if !ok {
			break
		}
		require.Len(t, y, x.Shape[0])
		sizes = append(sizes, x.Shape[0])
		for _, v := range x.Data {
			seen[v] = true
		}
	}
	require.NoError(t, ep.Err())
	require.Equal(t, []int{10, 10, 3}, sizes)
	require.Len(t, seen, 23)
}

func TestLoaderSequentialOrder(t *testing.T) {
	d := &Dataset{Images: [][]byte{{0}, {1}, {2}}, Labels: []uint8{0, 1, 2}, Rows: 1, Cols: 1}
	ep := NewLoader(d, 2, false, nil).Epoch()
	_, y, ok := ep.Next()
	require.True(t, ok)
	require.Equal(t, []int{0, 1}, y)
	_, y, ok = ep.Next()
	require.True(t, ok)
	require.Equal(t, []int{2}, y)
	_, _, ok = ep.Next()
	require.False(t, ok)
}
