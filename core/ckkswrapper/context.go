// Package ckkswrapper bundles the CKKS objects the client and the server each hold.
package ckkswrapper

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// DefaultLogN gives 4096 slots, enough for two 2048-wide blocks per ciphertext.
const DefaultLogN = 13

// HeContext is the client side: it owns the secret key and can encrypt and decrypt.
type HeContext struct {
	Params    ckks.Parameters
	Encoder   *ckks.Encoder
	Encryptor *rlwe.Encryptor
	Decryptor *rlwe.Decryptor

	kgen *rlwe.KeyGenerator
	sk   *rlwe.SecretKey
	rlk  *rlwe.RelinearizationKey
}

// ServerKit is what the server receives: public parameters and evaluation keys only.
type ServerKit struct {
	Params    ckks.Parameters
	Encoder   *ckks.Encoder
	Evaluator *ckks.Evaluator
}

// NewHeContext uses DefaultLogN.
func NewHeContext() *HeContext {
	h, err := NewHeContextWithLogN(DefaultLogN)
	if err != nil {
		panic(err)
	}
	return h
}

// NewHeContextWithLogN builds a depth-2 parameter set of ring degree 2^logN.
func NewHeContextWithLogN(logN int) (*HeContext, error) {
	params, err := ckks.NewParametersFromLiteral(ckks.ParametersLiteral{
		LogN:            logN,
		LogQ:            []int{55, 40, 40},
		LogP:            []int{55},
		LogDefaultScale: 40,
	})
	if err != nil {
		return nil, fmt.Errorf("ckks parameters (logN=%d): %w", logN, err)
	}
	return NewHeContextWithParams(params), nil
}

// NewHeContextWithParams generates a fresh key pair for params.
func NewHeContextWithParams(params ckks.Parameters) *HeContext {
	kgen := rlwe.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	return &HeContext{
		Params:    params,
		Encoder:   ckks.NewEncoder(params),
		Encryptor: rlwe.NewEncryptor(params, pk),
		Decryptor: rlwe.NewDecryptor(params, sk),
		kgen:      kgen,
		sk:        sk,
		rlk:       kgen.GenRelinearizationKeyNew(sk),
	}
}

// GenServerKit derives an evaluator holding the relinearization key and one
// Galois key per rotation step in rots.
func (h *HeContext) GenServerKit(rots []int) *ServerKit {
	galEls := make([]uint64, 0, len(rots))
	for _, k := range rots {
		galEls = append(galEls, h.Params.GaloisElement(k))
	}
	var gks []*rlwe.GaloisKey
	if len(galEls) > 0 {
		gks = h.kgen.GenGaloisKeysNew(galEls, h.sk)
	}
	evk := rlwe.NewMemEvaluationKeySet(h.rlk, gks...)
	return &ServerKit{
		Params:    h.Params,
		Encoder:   ckks.NewEncoder(h.Params),
		Evaluator: ckks.NewEvaluator(h.Params, evk),
	}
}

// EncryptReal encodes vals (zero-padded to the slot count) at the top level and encrypts them.
func (h *HeContext) EncryptReal(vals []float64) (*rlwe.Ciphertext, error) {
	slots := h.Params.MaxSlots()
	if len(vals) > slots {
		return nil, fmt.Errorf("%d values exceed %d slots", len(vals), slots)
	}
	vec := make([]complex128, slots)
	for i, v := range vals {
		vec[i] = complex(v, 0)
	}
	pt := ckks.NewPlaintext(h.Params, h.Params.MaxLevel())
	if err := h.Encoder.Encode(vec, pt); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return h.Encryptor.EncryptNew(pt)
}

// DecryptReal decrypts ct and returns the real parts of every slot.
func (h *HeContext) DecryptReal(ct *rlwe.Ciphertext) ([]float64, error) {
	pt := h.Decryptor.DecryptNew(ct)
	vec := make([]complex128, h.Params.MaxSlots())
	if err := h.Encoder.Decode(pt, vec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = real(v)
	}
	return out, nil
}
