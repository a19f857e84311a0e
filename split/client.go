package split

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"lora_lib/core/ckkswrapper"
)

// HeadClient encrypts hidden activations and decrypts the returned logits.
type HeadClient struct {
	he     *ckkswrapper.HeContext
	layout Layout
}

func NewHeadClient(he *ckkswrapper.HeContext, layout Layout) *HeadClient {
	return &HeadClient{he: he, layout: layout}
}

// Encrypt replicates hidden into every block of one ciphertext.
func (c *HeadClient) Encrypt(hidden []float64) (*rlwe.Ciphertext, error) {
	if len(hidden) != c.layout.InDim {
		return nil, fmt.Errorf("hidden width %d, want %d", len(hidden), c.layout.InDim)
	}
	vals := make([]float64, c.he.Params.MaxSlots())
	for b := 0; b < c.layout.RowsPerCipher; b++ {
		copy(vals[b*c.layout.Block:], hidden)
	}
	return c.he.EncryptReal(vals)
}

// Decrypt reassembles OutDim logits from the server's ciphertexts.
func (c *HeadClient) Decrypt(cts []*rlwe.Ciphertext) ([]float64, error) {
	if len(cts) != c.layout.Ciphers() {
		return nil, fmt.Errorf("got %d ciphertexts, want %d", len(cts), c.layout.Ciphers())
	}
	logits := make([]float64, c.layout.OutDim)
	for i, ct := range cts {
		vals, err := c.he.DecryptReal(ct)
		if err != nil {
			return nil, err
		}
		for b := 0; b < c.layout.RowsPerCipher; b++ {
			r := i*c.layout.RowsPerCipher + b
			if r >= c.layout.OutDim {
				break
			}
			logits[r] = vals[b*c.layout.Block]
		}
	}
	return logits, nil
}

// RunLocal pushes every hidden vector through server in-process: the
// requests are framed into one buffer, served in order, and the replies
// read back from another. Result i holds the logits of hidden[i].
func RunLocal(client *HeadClient, server *HeadServer, hidden [][]float64) ([][]float64, error) {
	var toServer, toClient bytes.Buffer
	send := NewProtocol(nil, &toServer)
	for id, h := range hidden {
		ct, err := client.Encrypt(h)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", id, err)
		}
		if err := send.SendHidden(id, ct); err != nil {
			return nil, err
		}
	}
	if err := send.SendDone(); err != nil {
		return nil, err
	}

	if err := server.Serve(NewProtocol(&toServer, &toClient)); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	recv := NewProtocol(&toClient, nil)
	out := make([][]float64, len(hidden))
	for range hidden {
		payload, err := recv.ReceiveLogits()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("server finished early")
		}
		if err != nil {
			return nil, err
		}
		if payload.SampleID < 0 || payload.SampleID >= len(out) {
			return nil, fmt.Errorf("unexpected sample id %d", payload.SampleID)
		}
		cts, err := payload.Ciphers()
		if err != nil {
			return nil, err
		}
		if out[payload.SampleID], err = client.Decrypt(cts); err != nil {
			return nil, fmt.Errorf("sample %d: %w", payload.SampleID, err)
		}
	}
	return out, nil
}
