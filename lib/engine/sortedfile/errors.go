package sortedfile

import "errors"

var (
	errWriterFinished = errors.New("sortedfile: writer already finished")
	errOutOfOrder     = errors.New("sortedfile: cells must arrive in non-decreasing order")
	errEmptyFile      = errors.New("sortedfile: cannot finish a file with zero cells")
	errShortFile      = errors.New("sortedfile: file too short to contain a trailer")
)
