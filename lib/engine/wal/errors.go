package wal

import "errors"

var (
	errIncompleteRecord  = errors.New("wal: buffer does not contain a full record")
	errRecordChecksum    = errors.New("wal: record checksum mismatch")
	errUncommittedRecord = errors.New("wal: record missing commit marker")
	errShortRecord       = errors.New("wal: record payload truncated")
	errWALClosed         = errors.New("wal: append to a closed WAL")
	errNilOpener         = errors.New("wal: Options.Opener is required")
)
