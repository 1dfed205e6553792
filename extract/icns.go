package extract

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
)

// parseICNS lists the PNG-encoded entries of an Apple icon family. Legacy
// RLE and JPEG 2000 entries are skipped.
func parseICNS(data []byte) ([]candidate, error) {
	if len(data) < 8 || string(data[:4]) != "icns" {
		return nil, ErrNotIcon
	}
	total := int(binary.BigEndian.Uint32(data[4:]))
	if total > len(data) || total < 8 {
		total = len(data)
	}

	var cands []candidate
	for off := 8; off+8 <= total; {
		n := int(binary.BigEndian.Uint32(data[off+4:]))
		if n < 8 || off+n > total {
			break
		}
		body := data[off+8 : off+n]
		off += n
		if !bytes.HasPrefix(body, pngMagic) {
			continue
		}
		cfg, err := png.DecodeConfig(bytes.NewReader(body))
		if err != nil || checkSides(cfg, MaxEntrySide) != nil {
			continue
		}
		cands = append(cands, candidate{width: cfg.Width, bits: 32, data: body})
	}
	if len(cands) == 0 {
		return nil, ErrNotIcon
	}
	return cands, nil
}

// decodeICNS returns the entry best suited to size.
func decodeICNS(data []byte, size int) (image.Image, error) {
	cands, err := parseICNS(data)
	if err != nil {
		return nil, err
	}
	return decodeBest(cands, size)
}
