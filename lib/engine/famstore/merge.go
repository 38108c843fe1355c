package famstore

import "github.com/dkvlabs/regiondb/lib/engine/keycodec"

// maskCells applies spec.md §3's tombstone masking rules to cells already
// merged from every source (MemBuffer + each SortedFile) and sorted in
// keycodec.Compare order (row asc, family asc, qualifier asc, timestamp
// desc, type asc). Tombstone markers themselves are dropped from the
// result; only surviving Put cells are returned.
//
// Grounded on spec.md §4.7's own statement of the rule set ("Delete-Cell
// removes any older put with equal (row,family,qualifier,timestamp);
// Delete-Column removes puts <= its timestamp; Delete-Family removes all
// puts in the family <= its timestamp"), applied here at read time rather
// than only during compaction, since Region reads must reflect tombstones
// immediately, not only after the next compaction rewrites them away.
func maskCells(cells []keycodec.Cell) []keycodec.Cell {
	var out []keycodec.Cell
	i := 0
	for i < len(cells) {
		j := i
		for j < len(cells) && eqBytes(cells[j].Row, cells[i].Row) {
			j++
		}
		out = append(out, maskRow(cells[i:j])...)
		i = j
	}
	return out
}

func maskRow(rowCells []keycodec.Cell) []keycodec.Cell {
	var familyDeleteTs uint64
	haveFamilyDelete := false
	for _, c := range rowCells {
		if keycodec.IsDeleteFamily(c.Type) && (!haveFamilyDelete || c.Timestamp > familyDeleteTs) {
			familyDeleteTs, haveFamilyDelete = c.Timestamp, true
		}
	}

	var out []keycodec.Cell
	k := 0
	for k < len(rowCells) {
		l := k
		for l < len(rowCells) && eqBytes(rowCells[l].Qualifier, rowCells[k].Qualifier) {
			l++
		}
		if best, ok := bestInQualifierGroup(rowCells[k:l], haveFamilyDelete, familyDeleteTs); ok {
			out = append(out, best)
		}
		k = l
	}
	return out
}

// bestInQualifierGroup returns the newest Put in group not masked by a
// family-level delete, a DeleteColumn, or an exact-timestamp DeleteCell /
// DeleteFamilyVersion within the same group.
func bestInQualifierGroup(group []keycodec.Cell, haveFamilyDelete bool, familyDeleteTs uint64) (keycodec.Cell, bool) {
	var columnDeleteTs uint64
	haveColumnDelete := false
	exactDeletes := map[uint64]bool{}
	for _, c := range group {
		switch c.Type {
		case keycodec.TypeDeleteColumn:
			if !haveColumnDelete || c.Timestamp > columnDeleteTs {
				columnDeleteTs, haveColumnDelete = c.Timestamp, true
			}
		case keycodec.TypeDeleteCell, keycodec.TypeDeleteFamilyVersion:
			exactDeletes[c.Timestamp] = true
		}
	}

	var best keycodec.Cell
	found := false
	for _, c := range group {
		if c.Type != keycodec.TypePut {
			continue
		}
		if haveFamilyDelete && c.Timestamp <= familyDeleteTs {
			continue
		}
		if haveColumnDelete && c.Timestamp <= columnDeleteTs {
			continue
		}
		if exactDeletes[c.Timestamp] {
			continue
		}
		if !found || c.Timestamp > best.Timestamp {
			best, found = c, true
		}
	}
	return best, found
}

func eqBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
