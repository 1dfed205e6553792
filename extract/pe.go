package extract

import (
	"debug/pe"
	"encoding/binary"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/meigma/iconcache/bitmap"
)

const (
	rtIcon      = 3
	rtGroupIcon = 14

	// rsrcMaxDepth bounds directory recursion in malformed resource trees.
	rsrcMaxDepth = 3
)

var peExts = map[string]struct{}{
	".exe": {}, ".dll": {}, ".cpl": {}, ".scr": {}, ".ocx": {},
}

// PEIcon reads the first icon group embedded in a Portable Executable.
// It works on any host, not only Windows.
type PEIcon struct{}

// Name implements Strategy.
func (PEIcon) Name() string { return "pe" }

// TryExtract implements Strategy.
func (PEIcon) TryExtract(path string, size int) (*bitmap.Bitmap, bool) {
	if _, ok := peExts[strings.ToLower(filepath.Ext(path))]; !ok {
		return nil, false
	}
	b, err := extractPEIcon(path, size)
	if err != nil {
		return nil, false
	}
	return b, true
}

func extractPEIcon(path string, size int) (*bitmap.Bitmap, error) {
	f, err := pe.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pe: %w", err)
	}
	defer f.Close()

	tree, err := resourceTree(f)
	if err != nil {
		return nil, err
	}
	img, err := tree.icon(size)
	if err != nil {
		return nil, err
	}
	return bitmap.FromImage(img, bitmap.KindExtracted, "")
}

// rsrc is a loaded resource section.
type rsrc struct {
	data []byte
	// base is the RVA of data[0].
	base uint32
	// root is the offset of the root directory within data.
	root uint32
}

type rsrcEntry struct {
	id    uint32
	named bool
	dir   bool
	off   uint32
}

func resourceTree(f *pe.File) (*rsrc, error) {
	var dd pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if len(oh.DataDirectory) <= pe.IMAGE_DIRECTORY_ENTRY_RESOURCE {
			return nil, ErrNotIcon
		}
		dd = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_RESOURCE]
	case *pe.OptionalHeader64:
		if len(oh.DataDirectory) <= pe.IMAGE_DIRECTORY_ENTRY_RESOURCE {
			return nil, ErrNotIcon
		}
		dd = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_RESOURCE]
	default:
		return nil, ErrNotIcon
	}
	if dd.VirtualAddress == 0 || dd.Size == 0 {
		return nil, fmt.Errorf("%w: no resource directory", ErrNotIcon)
	}
	for _, s := range f.Sections {
		end := s.VirtualAddress + max(s.VirtualSize, s.Size)
		if dd.VirtualAddress < s.VirtualAddress || dd.VirtualAddress >= end {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("read resource section: %w", err)
		}
		return &rsrc{data: data, base: s.VirtualAddress, root: dd.VirtualAddress - s.VirtualAddress}, nil
	}
	return nil, fmt.Errorf("%w: resource section not found", ErrNotIcon)
}

// entries lists the directory at off (relative to the resource root).
func (r *rsrc) entries(off uint32) ([]rsrcEntry, error) {
	at := uint64(r.root) + uint64(off)
	if at+16 > uint64(len(r.data)) {
		return nil, fmt.Errorf("%w: directory out of range", ErrNotIcon)
	}
	d := r.data[at:]
	n := int(binary.LittleEndian.Uint16(d[12:])) + int(binary.LittleEndian.Uint16(d[14:]))
	if at+16+uint64(n)*8 > uint64(len(r.data)) {
		return nil, fmt.Errorf("%w: directory entries out of range", ErrNotIcon)
	}
	out := make([]rsrcEntry, n)
	for i := range n {
		e := d[16+i*8:]
		name := binary.LittleEndian.Uint32(e[0:])
		ptr := binary.LittleEndian.Uint32(e[4:])
		out[i] = rsrcEntry{
			id:    name &^ (1 << 31),
			named: name&(1<<31) != 0,
			dir:   ptr&(1<<31) != 0,
			off:   ptr &^ (1 << 31),
		}
	}
	return out, nil
}

// leaf follows the first entry of each nested directory down to a data
// entry and returns its bytes.
func (r *rsrc) leaf(e rsrcEntry) ([]byte, error) {
	for depth := 0; e.dir; depth++ {
		if depth >= rsrcMaxDepth {
			return nil, fmt.Errorf("%w: resource tree too deep", ErrNotIcon)
		}
		sub, err := r.entries(e.off)
		if err != nil {
			return nil, err
		}
		if len(sub) == 0 {
			return nil, fmt.Errorf("%w: empty resource directory", ErrNotIcon)
		}
		e = sub[0]
	}
	at := uint64(r.root) + uint64(e.off)
	if at+16 > uint64(len(r.data)) {
		return nil, fmt.Errorf("%w: data entry out of range", ErrNotIcon)
	}
	rva := binary.LittleEndian.Uint32(r.data[at:])
	size := binary.LittleEndian.Uint32(r.data[at+4:])
	if rva < r.base {
		return nil, fmt.Errorf("%w: data outside resource section", ErrNotIcon)
	}
	start := uint64(rva - r.base)
	if start+uint64(size) > uint64(len(r.data)) {
		return nil, fmt.Errorf("%w: data outside resource section", ErrNotIcon)
	}
	return r.data[start : start+uint64(size)], nil
}

// typeDir returns the second-level entries for a resource type.
func (r *rsrc) typeDir(typ uint32) ([]rsrcEntry, error) {
	top, err := r.entries(0)
	if err != nil {
		return nil, err
	}
	for _, e := range top {
		if !e.named && e.id == typ && e.dir {
			return r.entries(e.off)
		}
	}
	return nil, fmt.Errorf("%w: no resources of type %d", ErrNotIcon, typ)
}

// icon decodes the best image of the first icon group.
func (r *rsrc) icon(size int) (image.Image, error) {
	groups, err := r.typeDir(rtGroupIcon)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: empty icon group directory", ErrNotIcon)
	}
	grp, err := r.leaf(groups[0])
	if err != nil {
		return nil, err
	}

	icons, err := r.typeDir(rtIcon)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint32]rsrcEntry, len(icons))
	for _, e := range icons {
		if !e.named {
			byID[e.id] = e
		}
	}

	if len(grp) < 6 {
		return nil, fmt.Errorf("%w: short icon group", ErrNotIcon)
	}
	count := int(binary.LittleEndian.Uint16(grp[4:]))
	var cands []candidate
	for i := range count {
		off := 6 + i*14
		if off+14 > len(grp) {
			break
		}
		g := grp[off : off+14]
		w := int(g[0])
		if w == 0 {
			w = 256
		}
		e, ok := byID[uint32(binary.LittleEndian.Uint16(g[12:]))]
		if !ok {
			continue
		}
		data, err := r.leaf(e)
		if err != nil {
			continue
		}
		cands = append(cands, candidate{
			width: w,
			bits:  int(binary.LittleEndian.Uint16(g[6:])),
			data:  data,
		})
	}
	if len(cands) == 0 {
		return nil, fmt.Errorf("%w: icon group has no images", ErrNotIcon)
	}
	return decodeBest(cands, size)
}
