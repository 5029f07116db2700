package fingerprint

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Binary layout (little endian):
//
//	magic "HS" | version u8 | grid u16 | numCoefs u16 | channels u8
//	averages 3×f64
//	per channel: count u16, count×i32
var binaryMagic = [2]byte{'H', 'S'}

const textPrefix = "haar"

// MarshalBinary encodes the signature into the compact form used by the stores.
func (s *Signature) MarshalBinary() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	size := 2 + 1 + 2 + 2 + 1 + NumChannels*8
	for c := range NumChannels {
		size += 2 + 4*len(s.Coefs[c])
	}

	buf := make([]byte, 0, size)
	buf = append(buf, binaryMagic[:]...)
	buf = append(buf, byte(s.Params.Version))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(s.Params.Grid))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(s.Params.NumCoefs))
	buf = append(buf, NumChannels)
	for c := range NumChannels {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(s.Averages[c]))
	}
	for c := range NumChannels {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s.Coefs[c])))
		for _, pos := range s.Coefs[c] {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(pos))
		}
	}
	return buf, nil
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (s *Signature) UnmarshalBinary(data []byte) error {
	r := reader{data: data}

	magic := r.bytes(2)
	if r.err != nil || magic[0] != binaryMagic[0] || magic[1] != binaryMagic[1] {
		return fmt.Errorf("%w: bad magic", ErrIncompatibleSignature)
	}

	var decoded Signature
	decoded.Params.Version = int(r.u8())
	decoded.Params.Grid = int(r.u16())
	decoded.Params.NumCoefs = int(r.u16())
	if channels := r.u8(); r.err == nil && channels != NumChannels {
		return fmt.Errorf("%w: %d channels, want %d", ErrIncompatibleSignature, channels, NumChannels)
	}
	for c := range NumChannels {
		decoded.Averages[c] = math.Float64frombits(r.u64())
	}
	for c := range NumChannels {
		count := int(r.u16())
		if r.err != nil {
			break
		}
		if count > decoded.Params.NumCoefs {
			return fmt.Errorf("%w: channel %d has %d coefficients", ErrIncompatibleSignature, c, count)
		}
		coefs := make([]int32, count)
		for i := range coefs {
			coefs[i] = int32(r.u32())
		}
		decoded.Coefs[c] = coefs
	}
	if r.err != nil {
		return fmt.Errorf("%w: %v", ErrIncompatibleSignature, r.err)
	}
	if len(r.data) != r.off {
		return fmt.Errorf("%w: %d trailing bytes", ErrIncompatibleSignature, len(r.data)-r.off)
	}
	if err := decoded.Validate(); err != nil {
		return err
	}

	*s = decoded
	return nil
}

// EncodeText returns a single-line ASCII form of the signature, e.g.
// "haar1:SFMBgAAoAA...". DecodeText restores it exactly.
func EncodeText(s *Signature) (string, error) {
	data, err := s.MarshalBinary()
	if err != nil {
		return "", err
	}
	return textPrefix + strconv.Itoa(s.Params.Version) + ":" + base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeText parses the output of EncodeText.
func DecodeText(text string) (*Signature, error) {
	text = strings.TrimSpace(text)
	head, payload, ok := strings.Cut(text, ":")
	if !ok || !strings.HasPrefix(head, textPrefix) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrIncompatibleSignature, textPrefix)
	}
	version, err := strconv.Atoi(strings.TrimPrefix(head, textPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: bad version %q", ErrIncompatibleSignature, head)
	}

	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatibleSignature, err)
	}

	var sig Signature
	if err := sig.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	if sig.Params.Version != version {
		return nil, fmt.Errorf("%w: prefix version %d, payload version %d",
			ErrIncompatibleSignature, version, sig.Params.Version)
	}
	return &sig, nil
}

// reader is a bounds-checked little-endian cursor; the first short read
// sticks in err and later reads return zero.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if r.off+n > len(r.data) {
		r.err = fmt.Errorf("truncated at offset %d", r.off)
		return make([]byte, n)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8   { return r.bytes(1)[0] }
func (r *reader) u16() uint16 { return binary.LittleEndian.Uint16(r.bytes(2)) }
func (r *reader) u32() uint32 { return binary.LittleEndian.Uint32(r.bytes(4)) }
func (r *reader) u64() uint64 { return binary.LittleEndian.Uint64(r.bytes(8)) }
