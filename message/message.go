// Package message decodes the debug message stream that the outer test
// bench wrappers multiplex with the sample stream.
//
// A stream word is width+1 bits wide. Bit width flags a header. The lower
// width bits of a header hold the packet length in the top LengthBits bits
// and the sender id below them. A header is followed by length payload
// words. Words without the flag are samples.
package message

import (
	"errors"
	"fmt"
	"strings"
)

// LengthBits is the number of header bits that encode the packet length.
const LengthBits = 8

var (
	// ErrTruncatedPacket is returned when the stream ends inside a packet.
	ErrTruncatedPacket = errors.New("message: stream ends inside a packet")

	// ErrHeaderField is returned when a header field does not fit.
	ErrHeaderField = errors.New("message: header field out of range")
)

// A Packet is one debug message.
type Packet struct {
	Sender  int
	Payload []uint64
}

// String renders the packet for logs.
func (p Packet) String() string {
	words := make([]string, len(p.Payload))
	for i, w := range p.Payload {
		words[i] = fmt.Sprintf("%x", w)
	}

	return fmt.Sprintf("sender=%d payload=[%s]", p.Sender, strings.Join(words, " "))
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}

	return (uint64(1) << width) - 1
}

func senderBits(width int) int {
	return width - LengthBits
}

// MakeHeader builds a header word.
func MakeHeader(length, sender, width int) (uint64, error) {
	if width <= LengthBits || width > 63 {
		return 0, fmt.Errorf("%w: width %d", ErrHeaderField, width)
	}

	if length < 0 || length >= 1<<LengthBits {
		return 0, fmt.Errorf("%w: length %d", ErrHeaderField, length)
	}

	sb := senderBits(width)
	if sender < 0 || uint64(sender) > mask(sb) {
		return 0, fmt.Errorf("%w: sender %d", ErrHeaderField, sender)
	}

	return uint64(1)<<width | uint64(length)<<sb | uint64(sender), nil
}

// IsHeader reports whether the word carries the header flag.
func IsHeader(word uint64, width int) bool {
	return word>>width&1 == 1
}

// ParseHeader extracts the length and sender of a header word.
func ParseHeader(word uint64, width int) (length, sender int) {
	sb := senderBits(width)
	length = int(word >> sb & mask(LengthBits))
	sender = int(word & mask(sb))

	return length, sender
}

// Encode turns a packet into stream words.
func Encode(p Packet, width int) ([]uint64, error) {
	header, err := MakeHeader(len(p.Payload), p.Sender, width)
	if err != nil {
		return nil, err
	}

	words := []uint64{header}
	for _, w := range p.Payload {
		words = append(words, w&mask(width))
	}

	return words, nil
}

// Split separates a stream into sample words and packets. On a truncated
// packet the samples and complete packets found so far are returned with
// ErrTruncatedPacket.
func Split(words []uint64, width int) ([]uint64, []Packet, error) {
	var (
		samples []uint64
		packets []Packet
	)

	for i := 0; i < len(words); i++ {
		w := words[i]
		if !IsHeader(w, width) {
			samples = append(samples, w&mask(width))
			continue
		}

		length, sender := ParseHeader(w, width)
		if i+length >= len(words) && length > 0 {
			return samples, packets, fmt.Errorf(
				"%w: header at word %d wants %d words, %d left",
				ErrTruncatedPacket, i, length, len(words)-i-1)
		}

		payload := make([]uint64, length)
		for k := 0; k < length; k++ {
			payload[k] = words[i+1+k] & mask(width)
		}

		packets = append(packets, Packet{Sender: sender, Payload: payload})
		i += length
	}

	return samples, packets, nil
}
