package mnist

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	imageMagic = 0x00000803
	labelMagic = 0x00000801
)

func openGzip(path string) (io.ReadCloser, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	gz, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return gz, f, nil
}

func readImages(path string) ([][]byte, int, int, error) {
	gz, f, err := openGzip(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()
	defer gz.Close()
	return parseImages(gz)
}

func parseImages(r io.Reader) ([][]byte, int, int, error) {
	var hdr [4]uint32
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, 0, 0, fmt.Errorf("read image header: %w", err)
	}
	if hdr[0] != imageMagic {
		return nil, 0, 0, fmt.Errorf("bad image magic %#x", hdr[0])
	}
	n, rows, cols := int(hdr[1]), int(hdr[2]), int(hdr[3])
	buf := make([]byte, n*rows*cols)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, 0, 0, fmt.Errorf("read %d images: %w", n, err)
	}
	images := make([][]byte, n)
	for i := range images {
		images[i] = buf[i*rows*cols : (i+1)*rows*cols : (i+1)*rows*cols]
	}
	return images, rows, cols, nil
}

func readLabels(path string) ([]uint8, error) {
	gz, f, err := openGzip(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	defer gz.Close()
	return parseLabels(gz)
}

func parseLabels(r io.Reader) ([]uint8, error) {
	var hdr [2]uint32
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read label header: %w", err)
	}
	if hdr[0] != labelMagic {
		return nil, fmt.Errorf("bad label magic %#x", hdr[0])
	}
	labels := make([]uint8, hdr[1])
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("read %d labels: %w", hdr[1], err)
	}
	return labels, nil
}
