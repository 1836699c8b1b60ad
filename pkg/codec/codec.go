// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-recoverykit.
//
// go-recoverykit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package codec frames Shamir shares into the opaque payloads that get
// sealed into a vault.
//
// Every payload in a vault has exactly the same byte length and structure
// whether it carries a real share, a dummy or a decoy share. Dummy payloads
// are genuine Shamir shares of a random throwaway secret, so nothing about
// the decrypted bytes reveals the role. Decode performs the same
// fixed-shape parsing on every payload and never judges share validity;
// that judgment belongs solely to recombination plus the authentication
// gate.
package codec

import (
	"encoding/binary"
	"errors"

	"github.com/jeremyhahn/go-recoverykit/pkg/crypto/rand"
	"github.com/jeremyhahn/go-recoverykit/pkg/threshold/shamir"
)

// Version identifies the payload framing version
const Version byte = 1

// headerSize is version byte + role-independent format byte + 2-byte
// share length
const headerSize = 4

// formatShamir marks the payload body as a Shamir share. There is exactly
// one format per version; the byte exists so the framing stays parseable if
// a future version changes the body encoding.
const formatShamir byte = 0x01

// ErrDecode indicates malformed payload framing: wrong length, version or
// format. It is never returned for valid framing around meaningless share
// data; the codec cannot and must not know a share's role.
var ErrDecode = errors.New("codec: malformed payload")

// Codec encodes and decodes share payloads for a single vault, fixed to
// that vault's pad size.
type Codec struct {
	pad       int
	shareSize int
}

// New creates a codec for the given pad size.
func New(pad int) (*Codec, error) {
	size := shamir.ShareSize(pad)
	if size == 0 {
		return nil, shamir.ErrInvalidPad
	}
	return &Codec{pad: pad, shareSize: size}, nil
}

// NewForPayloadSize creates a codec whose PayloadSize equals size.
// Recovery uses this to rebuild the codec from a stored kit, where only
// the sealed blob length is recorded.
func NewForPayloadSize(size int) (*Codec, error) {
	body := size - headerSize
	if body <= 0 || body%shamir.ShareCharsPerChunk != 0 {
		return nil, ErrDecode
	}
	pad := body / shamir.ShareCharsPerChunk * shamir.ChunkSize
	return New(pad)
}

// PayloadSize returns the fixed serialized length L of every payload this
// codec produces.
func (c *Codec) PayloadSize() int {
	return headerSize + c.shareSize
}

// PadSize returns the pad size this codec is fixed to.
func (c *Codec) PadSize() int {
	return c.pad
}

// EncodeReal frames a Shamir share into a payload.
func (c *Codec) EncodeReal(share []byte) ([]byte, error) {
	if len(share) != c.shareSize {
		return nil, ErrDecode
	}
	payload := make([]byte, 0, c.PayloadSize())
	payload = append(payload, Version, formatShamir)
	payload = binary.BigEndian.AppendUint16(payload, uint16(c.shareSize))
	payload = append(payload, share...)
	return payload, nil
}

// Decode parses a payload back into share bytes. Parsing is fixed-shape:
// the same checks run in the same order for every input, and only framing
// corruption is reported.
func (c *Codec) Decode(payload []byte) ([]byte, error) {
	if len(payload) != c.PayloadSize() {
		return nil, ErrDecode
	}
	if payload[0] != Version || payload[1] != formatShamir {
		return nil, ErrDecode
	}
	if int(binary.BigEndian.Uint16(payload[2:4])) != c.shareSize {
		return nil, ErrDecode
	}
	share := make([]byte, c.shareSize)
	copy(share, payload[headerSize:])
	return share, nil
}

// DummySource produces dummy payloads drawn from the real-share
// distribution. Each dummy is a share of a random fake secret split with
// the same pad and threshold profile as the real secret, generated in
// batches and consumed one at a time.
type DummySource struct {
	codec     *Codec
	rng       *rand.Source
	secretLen int
	threshold int
	batchSize int
	batch     [][]byte
}

// NewDummySource creates a dummy payload source. secretLen is the real
// secret's length, so fake secrets match its structure; threshold and
// batchSize mirror the real split profile.
func NewDummySource(c *Codec, rng *rand.Source, secretLen, threshold, batchSize int) (*DummySource, error) {
	if batchSize < threshold {
		batchSize = threshold
	}
	if batchSize < 1 {
		batchSize = 1
	}
	if secretLen < 1 {
		secretLen = 1
	}
	if secretLen+2 > c.pad {
		return nil, shamir.ErrPadTooSmall
	}
	return &DummySource{
		codec:     c,
		rng:       rng,
		secretLen: secretLen,
		threshold: threshold,
		batchSize: batchSize,
	}, nil
}

// EncodeDummy returns the next dummy payload, splitting a fresh fake
// secret whenever the current batch is exhausted.
func (d *DummySource) EncodeDummy() ([]byte, error) {
	if len(d.batch) == 0 {
		if err := d.refill(); err != nil {
			return nil, err
		}
	}
	share := d.batch[0]
	d.batch = d.batch[1:]
	return d.codec.EncodeReal(share)
}

func (d *DummySource) refill() error {
	fake, err := d.rng.Bytes(d.secretLen)
	if err != nil {
		return err
	}
	framed, err := shamir.Frame(fake, d.codec.pad)
	if err != nil {
		return err
	}
	batch, err := shamir.Split(framed, d.threshold, d.batchSize)
	if err != nil {
		return err
	}
	d.batch = batch
	return nil
}
