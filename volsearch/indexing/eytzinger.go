package indexing

// slotIndex maps record ids to slots through an Eytzinger layout: the sorted
// ids stored in breadth-first order of the implicit binary search tree.
// Reference: "Eytzinger Layout" (in-order to breadth-first array mapping).
type slotIndex struct {
	keys  []RecordID
	slots []uint32
}

// newSlotIndex lays out sorted ids; sorted[i] lives in slot i.
func newSlotIndex(sorted []RecordID) slotIndex {
	n := len(sorted)
	x := slotIndex{keys: make([]RecordID, n), slots: make([]uint32, n)}
	pos := 0
	var fill func(i int)
	fill = func(i int) {
		if i > n {
			return
		}
		fill(i << 1)
		x.keys[i-1] = sorted[pos]
		x.slots[i-1] = uint32(pos)
		pos++
		fill(i<<1 | 1)
	}
	fill(1)
	return x
}

// find returns the slot holding id.
func (x slotIndex) find(id RecordID) (uint32, bool) {
	for i := 1; i <= len(x.keys); {
		k := x.keys[i-1]
		switch {
		case id == k:
			return x.slots[i-1], true
		case id < k:
			i <<= 1
		default:
			i = i<<1 | 1
		}
	}
	return 0, false
}

func (x slotIndex) len() int { return len(x.keys) }
