package keys

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// DefaultSS58Format is the generic Substrate network prefix.
const DefaultSS58Format uint16 = 42

const (
	maxSS58Format     = 16383
	ss58ChecksumBytes = 2
	accountIDBytes    = 32
)

var ss58Prefix = []byte("SS58PRE")

var (
	ErrInvalidAddress = errors.New("invalid ss58 address")
	ErrSS58Format     = errors.New("ss58 format out of range")
)

func ss58PrefixBytes(format uint16) ([]byte, error) {
	switch {
	case format < 64:
		return []byte{byte(format)}, nil
	case format <= maxSS58Format:
		first := byte((format&0x00fc)>>2) | 0x40
		second := byte(format>>8) | byte((format&0x0003)<<6)
		return []byte{first, second}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrSS58Format, format)
	}
}

func ss58Checksum(payload []byte) []byte {
	h := blake2b.Sum512(append(append([]byte{}, ss58Prefix...), payload...))
	return h[:ss58ChecksumBytes]
}

// EncodeSS58 encodes a 32-byte public key as an SS58 address for format.
func EncodeSS58(pub []byte, format uint16) (string, error) {
	if len(pub) != accountIDBytes {
		return "", fmt.Errorf("%w: public key is %d bytes", ErrInvalidAddress, len(pub))
	}
	prefix, err := ss58PrefixBytes(format)
	if err != nil {
		return "", err
	}

	payload := make([]byte, 0, len(prefix)+len(pub)+ss58ChecksumBytes)
	payload = append(payload, prefix...)
	payload = append(payload, pub...)
	payload = append(payload, ss58Checksum(payload)...)
	return base58.Encode(payload), nil
}

// DecodeSS58 returns the public key and network format of addr.
func DecodeSS58(addr string) ([]byte, uint16, error) {
	data, err := base58.Decode(addr)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(data) < 1 {
		return nil, 0, ErrInvalidAddress
	}

	var (
		format    uint16
		prefixLen int
	)
	switch {
	case data[0] < 64:
		format, prefixLen = uint16(data[0]), 1
	case data[0] < 128:
		if len(data) < 2 {
			return nil, 0, ErrInvalidAddress
		}
		lower := (data[0] << 2) | (data[1] >> 6)
		upper := data[1] & 0x3f
		format, prefixLen = uint16(lower)|uint16(upper)<<8, 2
	default:
		return nil, 0, fmt.Errorf("%w: reserved prefix byte %#x", ErrInvalidAddress, data[0])
	}

	if len(data) != prefixLen+accountIDBytes+ss58ChecksumBytes {
		return nil, 0, fmt.Errorf("%w: %d bytes", ErrInvalidAddress, len(data))
	}
	body := data[:prefixLen+accountIDBytes]
	if !bytes.Equal(ss58Checksum(body), data[len(body):]) {
		return nil, 0, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}
	return append([]byte(nil), body[prefixLen:]...), format, nil
}
