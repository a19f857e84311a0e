// Package split evaluates the classifier's output layer on an encrypted
// hidden activation: the client keeps the secret key, the server holds the
// adapted weights and only ever sees ciphertexts.
package split

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

func init() {
	gob.Register(CipherPayload{})
}

// MessageType tags each frame of the exchange.
type MessageType int

const (
	MsgHidden MessageType = iota
	MsgLogits
	MsgDone
	MsgError
)

// Message is one gob frame.
type Message struct {
	Type    MessageType
	Payload interface{}
}

// CipherPayload carries serialized ciphertexts for one sample.
type CipherPayload struct {
	SampleID    int
	Ciphertexts [][]byte
	Level       int
	ScaleFloat  float64
}

// Protocol frames messages over a reader/writer pair.
type Protocol struct {
	encoder *gob.Encoder
	decoder *gob.Decoder
}

// NewProtocol wraps r and w. Either may be nil for a one-way endpoint.
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	p := &Protocol{}
	if w != nil {
		p.encoder = gob.NewEncoder(w)
	}
	if r != nil {
		p.decoder = gob.NewDecoder(r)
	}
	return p
}

func (p *Protocol) Send(msg *Message) error {
	if p.encoder == nil {
		return fmt.Errorf("protocol has no writer")
	}
	return p.encoder.Encode(msg)
}

func (p *Protocol) Receive() (*Message, error) {
	if p.decoder == nil {
		return nil, fmt.Errorf("protocol has no reader")
	}
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendHidden sends an encrypted hidden activation.
func (p *Protocol) SendHidden(sampleID int, cts ...*rlwe.Ciphertext) error {
	return p.sendCiphers(MsgHidden, sampleID, cts)
}

// SendLogits sends the encrypted logits for a sample.
func (p *Protocol) SendLogits(sampleID int, cts ...*rlwe.Ciphertext) error {
	return p.sendCiphers(MsgLogits, sampleID, cts)
}

func (p *Protocol) sendCiphers(t MessageType, sampleID int, cts []*rlwe.Ciphertext) error {
	payload := CipherPayload{SampleID: sampleID, Ciphertexts: make([][]byte, len(cts))}
	for i, ct := range cts {
		b, err := ct.MarshalBinary()
		if err != nil {
			return fmt.Errorf("marshal ciphertext %d: %w", i, err)
		}
		payload.Ciphertexts[i] = b
	}
	if len(cts) > 0 {
		payload.Level = cts[0].Level()
		payload.ScaleFloat = cts[0].Scale.Float64()
	}
	return p.Send(&Message{Type: t, Payload: payload})
}

// SendDone signals that no more samples follow.
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

// SendError reports a failure to the peer.
func (p *Protocol) SendError(err error) error {
	return p.Send(&Message{Type: MsgError, Payload: err.Error()})
}

// ReceiveHidden returns io.EOF once the peer sent Done.
func (p *Protocol) ReceiveHidden() (*CipherPayload, error) {
	return p.receiveCiphers(MsgHidden)
}

// ReceiveLogits returns io.EOF once the peer sent Done.
func (p *Protocol) ReceiveLogits() (*CipherPayload, error) {
	return p.receiveCiphers(MsgLogits)
}

func (p *Protocol) receiveCiphers(want MessageType) (*CipherPayload, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	switch msg.Type {
	case MsgError:
		return nil, fmt.Errorf("remote error: %v", msg.Payload)
	case MsgDone:
		return nil, io.EOF
	case want:
	default:
		return nil, fmt.Errorf("expected message %d, got %d", want, msg.Type)
	}
	payload, ok := msg.Payload.(CipherPayload)
	if !ok {
		return nil, fmt.Errorf("invalid payload type %T", msg.Payload)
	}
	return &payload, nil
}

// Ciphers deserializes the payload's ciphertexts.
func (c *CipherPayload) Ciphers() ([]*rlwe.Ciphertext, error) {
	out := make([]*rlwe.Ciphertext, len(c.Ciphertexts))
	for i, b := range c.Ciphertexts {
		ct := new(rlwe.Ciphertext)
		if err := ct.UnmarshalBinary(b); err != nil {
			return nil, fmt.Errorf("sample %d ciphertext %d: %w", c.SampleID, i, err)
		}
		out[i] = ct
	}
	return out, nil
}
