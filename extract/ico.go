package extract

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"sort"

	ico "github.com/sergeymakinen/go-ico"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// MaxEntrySide is the largest side accepted for one image inside an icon
// container. Larger headers are rejected before any pixels are allocated.
const MaxEntrySide = 1024

// icoHeaderLen is the size of an icon directory with a single entry.
const icoHeaderLen = 6 + 16

// candidate describes one image in an icon container.
type candidate struct {
	width int
	bits  int
	data  []byte
}

// rank orders candidates for a requested size: the smallest image at least
// size wide first (deeper colour before shallower), then smaller images from
// largest down.
func rank(cands []candidate, size int) []candidate {
	out := append([]candidate(nil), cands...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		aBig, bBig := a.width >= size, b.width >= size
		switch {
		case aBig != bBig:
			return aBig
		case a.width != b.width && aBig:
			return a.width < b.width
		case a.width != b.width:
			return a.width > b.width
		default:
			return a.bits > b.bits
		}
	})
	return out
}

// decodeBest decodes the highest-ranked candidate that parses.
func decodeBest(cands []candidate, size int) (image.Image, error) {
	var lastErr error = ErrNotIcon
	for _, c := range rank(cands, size) {
		img, err := decodeIconImage(c.data)
		if err == nil {
			return img, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// parseICO reads the directory of an ICO or CUR file.
func parseICO(data []byte) ([]candidate, error) {
	if len(data) < 6 {
		return nil, ErrNotIcon
	}
	reserved := binary.LittleEndian.Uint16(data[0:])
	typ := binary.LittleEndian.Uint16(data[2:])
	count := int(binary.LittleEndian.Uint16(data[4:]))
	if reserved != 0 || (typ != 1 && typ != 2) || count == 0 {
		return nil, ErrNotIcon
	}

	cands := make([]candidate, 0, count)
	for i := range count {
		off := 6 + i*16
		if off+16 > len(data) {
			break
		}
		e := data[off : off+16]
		w := int(e[0])
		if w == 0 {
			w = 256
		}
		n := uint64(binary.LittleEndian.Uint32(e[8:]))
		start := uint64(binary.LittleEndian.Uint32(e[12:]))
		if n == 0 || start+n > uint64(len(data)) {
			continue
		}
		cands = append(cands, candidate{
			width: w,
			bits:  int(binary.LittleEndian.Uint16(e[6:])),
			data:  data[start : start+n],
		})
	}
	if len(cands) == 0 {
		return nil, ErrNotIcon
	}
	return cands, nil
}

// decodeICO returns the image in an ICO file best suited to size.
func decodeICO(data []byte, size int) (image.Image, error) {
	cands, err := parseICO(data)
	if err != nil {
		return nil, err
	}
	return decodeBest(cands, size)
}

// decodeIconImage decodes one icon payload, either embedded PNG or a
// headerless DIB followed by its AND mask. The payload is wrapped in a
// single-entry icon directory so both forms go through the ico reader.
func decodeIconImage(data []byte) (image.Image, error) {
	if !bytes.HasPrefix(data, pngMagic) {
		data = opaqueLegacyAlpha(data)
	}
	single := singleEntryICO(data)
	cfg, err := ico.DecodeConfig(bytes.NewReader(single))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotIcon, err)
	}
	if err := checkSides(cfg, MaxEntrySide); err != nil {
		return nil, err
	}
	img, err := ico.Decode(bytes.NewReader(single))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotIcon, err)
	}
	return img, nil
}

// checkSides rejects images whose header claims a side outside (0, limit].
func checkSides(cfg image.Config, limit int) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: empty %dx%d image", ErrNotIcon, cfg.Width, cfg.Height)
	}
	if cfg.Width > limit || cfg.Height > limit {
		return fmt.Errorf("%w: %w: %dx%d exceeds %d", ErrNotIcon, ErrTooLarge, cfg.Width, cfg.Height, limit)
	}
	return nil
}

// singleEntryICO prefixes payload with an icon directory holding one entry.
func singleEntryICO(payload []byte) []byte {
	out := make([]byte, icoHeaderLen+len(payload))
	binary.LittleEndian.PutUint16(out[2:], 1)
	binary.LittleEndian.PutUint16(out[4:], 1)
	binary.LittleEndian.PutUint32(out[14:], uint32(len(payload))) //nolint:gosec // bounded by maxImageFileSize
	binary.LittleEndian.PutUint32(out[18:], icoHeaderLen)
	copy(out[icoHeaderLen:], payload)
	return out
}

// opaqueLegacyAlpha returns a copy of a 32-bit DIB payload with every alpha
// byte set to 0xff when all of them are zero. Such icons predate alpha
// channels and rely on the AND mask alone.
func opaqueLegacyAlpha(dib []byte) []byte {
	if len(dib) < 40 {
		return dib
	}
	hdrLen := int(binary.LittleEndian.Uint32(dib[0:]))
	width := int(int32(binary.LittleEndian.Uint32(dib[4:]))) //nolint:gosec // sign is the top-down flag
	height := int(int32(binary.LittleEndian.Uint32(dib[8:]))) / 2
	bits := binary.LittleEndian.Uint16(dib[14:])
	compression := binary.LittleEndian.Uint32(dib[16:])
	if height < 0 {
		height = -height
	}
	if bits != 32 || compression != 0 || hdrLen < 40 || width <= 0 || width > MaxEntrySide || height > MaxEntrySide {
		return dib
	}
	end := hdrLen + width*height*4
	if end > len(dib) {
		return dib
	}
	for i := hdrLen + 3; i < end; i += 4 {
		if dib[i] != 0 {
			return dib
		}
	}
	out := bytes.Clone(dib)
	for i := hdrLen + 3; i < end; i += 4 {
		out[i] = 0xff
	}
	return out
}
