package indexing

import (
	"strings"

	roaring "github.com/RoaringBitmap/roaring"
)

// NameBitmaps holds roaring bitmaps over store slots, built once at freeze time.
// Trigram -> slots whose lowercased name contains that trigram.
// Ext -> slots of files with that lowercased extension.
type NameBitmaps struct {
	Trigram map[uint32]*roaring.Bitmap
	Ext     map[string]*roaring.Bitmap
	Dirs    *roaring.Bitmap
	Hidden  *roaring.Bitmap
	All     *roaring.Bitmap
}

// NewNameBitmaps returns empty bitmaps ready for Add.
func NewNameBitmaps() *NameBitmaps {
	return &NameBitmaps{
		Trigram: make(map[uint32]*roaring.Bitmap),
		Ext:     make(map[string]*roaring.Bitmap),
		Dirs:    roaring.New(),
		Hidden:  roaring.New(),
		All:     roaring.New(),
	}
}

// Add registers slot with its lowercased name.
func (nb *NameBitmaps) Add(slot uint32, lower string, rec FileRecord) {
	nb.All.Add(slot)
	if rec.IsDir {
		nb.Dirs.Add(slot)
	} else if ext := Extension(lower); ext != "" {
		bm, ok := nb.Ext[ext]
		if !ok {
			bm = roaring.New()
			nb.Ext[ext] = bm
		}
		bm.Add(slot)
	}
	if rec.Hidden {
		nb.Hidden.Add(slot)
	}
	for i := 0; i+3 <= len(lower); i++ {
		key := trigramKey(lower[i : i+3])
		bm, ok := nb.Trigram[key]
		if !ok {
			bm = roaring.New()
			nb.Trigram[key] = bm
		}
		bm.Add(slot)
	}
}

// Optimize compacts every bitmap; called once when the store freezes.
func (nb *NameBitmaps) Optimize() {
	for _, bm := range nb.Trigram {
		bm.RunOptimize()
	}
	for _, bm := range nb.Ext {
		bm.RunOptimize()
	}
	nb.Dirs.RunOptimize()
	nb.Hidden.RunOptimize()
	nb.All.RunOptimize()
}

// Candidates returns the slots whose names may contain token. ok is false when
// the token is too short for trigram narrowing and every slot is a candidate.
func (nb *NameBitmaps) Candidates(token string) (bm *roaring.Bitmap, ok bool) {
	if len(token) < 3 {
		return nil, false
	}
	var res *roaring.Bitmap
	for i := 0; i+3 <= len(token); i++ {
		tri, found := nb.Trigram[trigramKey(token[i:i+3])]
		if !found {
			return roaring.New(), true
		}
		if res == nil {
			res = tri.Clone()
			continue
		}
		res.And(tri)
		if res.IsEmpty() {
			return res, true
		}
	}
	return res, true
}

// OrExt returns the union of the extension bitmaps for exts.
func (nb *NameBitmaps) OrExt(exts ...string) *roaring.Bitmap {
	res := roaring.New()
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if bm, ok := nb.Ext[ext]; ok {
			res.Or(bm)
		}
	}
	return res
}

// Extension returns the lowercased extension of name without the dot, or "" for
// names without one. Leading-dot names like ".profile" have no extension.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

func trigramKey(s string) uint32 {
	return uint32(s[0])<<16 | uint32(s[1])<<8 | uint32(s[2])
}
