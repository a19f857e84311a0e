package split

import (
	"errors"
	"fmt"
	"io"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"lora_lib/core/ckkswrapper"
	"lora_lib/nn/layers"
	"lora_lib/utils"
)

// HeadServer computes W_eff·h + b on an encrypted h for one linear layer.
// The effective weight is materialized on every request, so a bound
// low-rank correction and its enabled flag are honoured.
type HeadServer struct {
	kit    *ckkswrapper.ServerKit
	layer  *layers.Linear
	layout Layout
}

func NewHeadServer(kit *ckkswrapper.ServerKit, layer *layers.Linear) (*HeadServer, error) {
	layout, err := NewLayout(layer.InDim(), layer.OutDim(), kit.Params.MaxSlots())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", layer.Name, err)
	}
	return &HeadServer{kit: kit, layer: layer, layout: layout}, nil
}

func (s *HeadServer) Layout() Layout { return s.layout }

// Eval returns Layout().Ciphers() ciphertexts; output row r sits in cipher
// r/RowsPerCipher at slot (r%RowsPerCipher)·Block.
func (s *HeadServer) Eval(ct *rlwe.Ciphertext) ([]*rlwe.Ciphertext, error) {
	if ct.Level() < 1 {
		return nil, fmt.Errorf("ciphertext at level %d cannot absorb a rescale", ct.Level())
	}
	w, err := s.layer.EffectiveWeight()
	if err != nil {
		return nil, err
	}
	eval := s.kit.Evaluator
	slots := s.kit.Params.MaxSlots()
	lay := s.layout
	out := make([]*rlwe.Ciphertext, 0, lay.Ciphers())

	for first := 0; first < lay.OutDim; first += lay.RowsPerCipher {
		wvec := make([]complex128, slots)
		bvec := make([]complex128, slots)
		for b := 0; b < lay.RowsPerCipher && first+b < lay.OutDim; b++ {
			row := w.Data[(first+b)*lay.InDim : (first+b+1)*lay.InDim]
			for i, v := range row {
				wvec[b*lay.Block+i] = complex(v, 0)
			}
			bvec[b*lay.Block] = complex(s.layer.B.Value.Data[first+b], 0)
		}
		wpt := ckks.NewPlaintext(s.kit.Params, ct.Level())
		if err := s.kit.Encoder.Encode(wvec, wpt); err != nil {
			return nil, fmt.Errorf("encode rows %d: %w", first, err)
		}
		prod, err := eval.MulNew(ct, wpt)
		if err != nil {
			return nil, fmt.Errorf("rows %d: %w", first, err)
		}
		acc := rlwe.NewCiphertext(s.kit.Params, prod.Degree(), prod.Level()-1)
		if err := eval.Rescale(prod, acc); err != nil {
			return nil, fmt.Errorf("rows %d: rescale: %w", first, err)
		}
		for _, step := range lay.Rotations() {
			rot, err := eval.RotateNew(acc, step)
			if err != nil {
				return nil, fmt.Errorf("rows %d: rotate %d: %w", first, step, err)
			}
			if acc, err = eval.AddNew(acc, rot); err != nil {
				return nil, err
			}
		}
		bpt := ckks.NewPlaintext(s.kit.Params, acc.Level())
		bpt.Scale = acc.Scale
		if err := s.kit.Encoder.Encode(bvec, bpt); err != nil {
			return nil, fmt.Errorf("encode bias %d: %w", first, err)
		}
		if acc, err = eval.AddNew(acc, bpt); err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}

// Serve answers hidden-activation requests on p until the peer sends Done.
// A failed sample is reported back and does not stop the loop.
func (s *HeadServer) Serve(p *Protocol) error {
	for {
		payload, err := p.ReceiveHidden()
		if errors.Is(err, io.EOF) {
			return p.SendDone()
		}
		if err != nil {
			return err
		}
		logf("[SERVER] sample %d received (%d ciphertexts)", payload.SampleID, len(payload.Ciphertexts))
		cts, err := payload.Ciphers()
		if err == nil && len(cts) != 1 {
			err = fmt.Errorf("sample %d: expected 1 ciphertext, got %d", payload.SampleID, len(cts))
		}
		var res []*rlwe.Ciphertext
		if err == nil {
			res, err = s.Eval(cts[0])
		}
		if err != nil {
			if sendErr := p.SendError(err); sendErr != nil {
				return sendErr
			}
			continue
		}
		if err := p.SendLogits(payload.SampleID, res...); err != nil {
			return err
		}
	}
}

func logf(format string, args ...interface{}) {
	if utils.Verbose {
		fmt.Fprintf(utils.Output, format+"\n", args...)
	}
}
