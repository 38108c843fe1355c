package famstore

import (
	"sort"
	"time"

	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engine/sortedfile"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
)

// SelectMinorCompaction picks the oldest-anchored, largest contiguous run
// of files satisfying the ratio bound, honoring Min/MaxFilesToCompact
// (spec.md §4.7 "Compaction selection (minor)"). Returns ok=false if no
// such selection meets MinFilesToCompact.
func (s *Store) SelectMinorCompaction() ([]*File, bool) {
	s.filesMu.RLock()
	files := append([]*File(nil), s.files...) // newest first
	s.filesMu.RUnlock()

	n := len(files)
	if n < s.opts.MinFilesToCompact {
		return nil, false
	}

	windowStart := n - s.opts.MaxFilesToCompact
	if windowStart < 0 {
		windowStart = 0
	}
	candidates := files[windowStart:n]

	for len(candidates) >= s.opts.MinFilesToCompact {
		if compactionRatioHolds(candidates, s.opts.CompactionRatio) {
			return candidates, true
		}
		// Drop the oldest file in the window (last element, newest-first)
		// and retry with a smaller, younger window.
		candidates = candidates[:len(candidates)-1]
	}
	return nil, false
}

// compactionRatioHolds reports whether, sorted by ascending size, no file
// exceeds ratio * sum(strictly smaller files) — spec.md §4.7's "no
// selected file is larger than r × sum(smaller selected)".
func compactionRatioHolds(files []*File, ratio float64) bool {
	sorted := append([]*File(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Size < sorted[j].Size })

	var sum int64
	for i, f := range sorted {
		if i > 0 && float64(f.Size) > ratio*float64(sum) {
			return false
		}
		sum += f.Size
	}
	return true
}

// AllFiles returns a snapshot of the current file list (newest first),
// e.g. for a Scheduler-requested major compaction over everything.
func (s *Store) AllFiles() []*File {
	s.filesMu.RLock()
	defer s.filesMu.RUnlock()
	return append([]*File(nil), s.files...)
}

// Compact merges selected into one new SortedFile and atomically replaces
// them in the file set (spec.md §4.7 "Compaction execution"/"Major
// compaction"). major additionally indicates whether selected is the
// store's entire current file set — only then may shadowed tombstones be
// dropped, per spec.md: "it is dropped only in a major compaction that
// includes all files and whose horizon exceeds the tombstone age".
func (s *Store) Compact(selected []*File, major bool) (*File, error) {
	const op = "famstore.Store.Compact"
	if len(selected) == 0 {
		return nil, nil
	}

	includesAll := major && len(selected) == s.FileCount()

	var raw []keycodec.Cell
	for _, f := range selected {
		h, err := s.handleFor(f)
		if err != nil {
			return nil, err
		}
		it, err := h.Scan(nil, nil, ^uint64(0))
		if err != nil {
			return nil, err
		}
		for {
			c, ok, err := it.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			raw = append(raw, c)
		}
	}
	sortCells(raw)

	fc := s.opts.FamilyConfig
	out := compactFilter(raw, fc.MaxVersions, fc.TTL, fc.TombstonePurgeDelay, s.opts.Now(), includesAll)
	if len(out) == 0 {
		return nil, s.replaceFiles(selected, nil)
	}

	w, fileID, err := s.opts.FS.CreateFile(s.opts.Family)
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	writer := sortedfile.NewWriter(w, s.opts.Writer)
	for _, c := range out {
		if err := writer.Append(c); err != nil {
			w.Close()
			return nil, err
		}
	}
	result, err := writer.Finish()
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}
	if err := s.opts.FS.PublishFile(s.opts.Family, fileID); err != nil {
		return nil, engineerrors.New(engineerrors.KindTransientIO, op, err)
	}

	maxSeq := uint64(0)
	for _, f := range selected {
		if f.MaxSequence > maxSeq {
			maxSeq = f.MaxSequence
		}
	}
	newFile := &File{
		FileID:      fileID,
		FirstKey:    result.FirstKey,
		LastKey:     result.LastKey,
		CellCount:   result.CellCount,
		Size:        result.Size,
		MaxSequence: maxSeq,
	}

	if err := s.replaceFiles(selected, newFile); err != nil {
		return nil, err
	}
	return newFile, nil
}

// MajorCompact compacts the store's entire current file set.
func (s *Store) MajorCompact() (*File, error) {
	return s.Compact(s.AllFiles(), true)
}

// replaceFiles atomically removes selected from the live file set (closing
// and archiving their handles) and, if replacement is non-nil, inserts it
// at the position matching its recency.
func (s *Store) replaceFiles(selected []*File, replacement *File) error {
	selectedIDs := make(map[string]bool, len(selected))
	for _, f := range selected {
		selectedIDs[f.FileID] = true
	}

	s.filesMu.Lock()
	var kept []*File
	for _, f := range s.files {
		if !selectedIDs[f.FileID] {
			kept = append(kept, f)
		}
	}
	if replacement != nil {
		kept = insertByRecency(kept, replacement)
	}
	s.files = kept
	for id := range selectedIDs {
		delete(s.handles, id)
	}
	s.filesMu.Unlock()

	for _, f := range selected {
		if err := s.opts.FS.ArchiveFile(s.opts.Family, f.FileID); err != nil {
			return err
		}
	}
	return nil
}

func insertByRecency(files []*File, f *File) []*File {
	idx := sort.Search(len(files), func(i int) bool { return files[i].MaxSequence <= f.MaxSequence })
	out := make([]*File, 0, len(files)+1)
	out = append(out, files[:idx]...)
	out = append(out, f)
	out = append(out, files[idx:]...)
	return out
}

// compactFilter applies the version horizon, TTL, and tombstone-retention
// rules to raw (unmasked) cells already sorted in keycodec.Compare order,
// returning the cells that survive into the compacted output — including
// retained tombstones, unlike maskCells which drops them unconditionally
// for reads.
func compactFilter(cells []keycodec.Cell, maxVersions int, ttl, purgeDelay time.Duration, now time.Time, includesAll bool) []keycodec.Cell {
	var out []keycodec.Cell
	i := 0
	for i < len(cells) {
		j := i
		for j < len(cells) && eqBytes(cells[j].Row, cells[i].Row) {
			j++
		}
		out = append(out, compactRow(cells[i:j], maxVersions, ttl, purgeDelay, now, includesAll)...)
		i = j
	}
	return out
}

func compactRow(rowCells []keycodec.Cell, maxVersions int, ttl, purgeDelay time.Duration, now time.Time, includesAll bool) []keycodec.Cell {
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
		out = append(out, compactQualifierGroup(rowCells[k:l], maxVersions, ttl, purgeDelay, now, includesAll, haveFamilyDelete, familyDeleteTs)...)
		k = l
	}
	return out
}

func compactQualifierGroup(group []keycodec.Cell, maxVersions int, ttl, purgeDelay time.Duration, now time.Time, includesAll bool, haveFamilyDelete bool, familyDeleteTs uint64) []keycodec.Cell {
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

	keptVersions := 0
	var out []keycodec.Cell
	for _, c := range group {
		if expired(c, ttl, now) {
			continue
		}
		if keycodec.IsDelete(c.Type) {
			// Dropped only once this compaction covers every file (no
			// older, unselected data remains for it to still shadow) AND
			// its own age clears the purge delay — the second half of
			// spec.md's "includes all files and whose horizon exceeds the
			// tombstone age", protecting a late-arriving put older than
			// the tombstone from resurfacing the instant the tombstone
			// that masks it is gone.
			if includesAll && tombstoneAge(c, now) > purgeDelay {
				continue
			}
			out = append(out, c)
			continue
		}
		// c.Type == TypePut
		masked := (haveFamilyDelete && c.Timestamp <= familyDeleteTs) ||
			(haveColumnDelete && c.Timestamp <= columnDeleteTs) ||
			exactDeletes[c.Timestamp]
		if masked {
			continue
		}
		if keptVersions >= maxVersions && maxVersions > 0 {
			continue
		}
		keptVersions++
		out = append(out, c)
	}
	return out
}

func tombstoneAge(c keycodec.Cell, now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(int64(c.Timestamp)))
}

func expired(c keycodec.Cell, ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	age := now.Sub(time.UnixMilli(int64(c.Timestamp)))
	return age > ttl
}
