// Package internal holds the raft log entry/query wire types for dcatalog,
// adapted from lib/store/dstore/internal's Command/Query split: Command
// carries a write through SyncPropose, Query carries a read through
// SyncRead/StaleRead.
package internal

import (
	"encoding/binary"
	"fmt"
)

// CommandType defines the possible write operations for the state machine.
type CommandType uint8

const (
	CommandTPut    CommandType = iota // Insert or update an entry.
	CommandTDelete                    // Delete an entry.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTPut:
		return "Put"
	case CommandTDelete:
		return "Delete"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// Command represents one write to be applied by the state machine (a
// single entry in the raft log).
type Command struct {
	Type  CommandType
	Key   string
	Value []byte
}

// SizeBytes returns the exact number of bytes needed to serialize this
// command.
func (command *Command) SizeBytes() int {
	size := 1 + 4 + len(command.Key) // Type + KeyLen + Key
	if command.Value != nil {
		size += len(command.Value)
	}
	return size
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 4 bytes for key length (big endian),
// N bytes for key data,
// N bytes for value data (optional)
func (command *Command) Serialize() []byte {
	totalSize := command.SizeBytes()
	result := make([]byte, totalSize)

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint32(result[1:5], uint32(len(command.Key)))
	keyBytes := []byte(command.Key)
	copy(result[5:5+len(keyBytes)], keyBytes)
	if command.Value != nil {
		copy(result[5+len(keyBytes):], command.Value)
	}
	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < 5 {
		return fmt.Errorf("data too short for command")
	}
	command.Type = CommandType(data[0])
	keyLen := binary.BigEndian.Uint32(data[1:5])
	if len(data) < 5+int(keyLen) {
		return fmt.Errorf("data too short for key of length %d", keyLen)
	}
	command.Key = string(data[5 : 5+keyLen])
	if len(data) > 5+int(keyLen) {
		command.Value = append([]byte(nil), data[5+int(keyLen):]...)
	} else {
		command.Value = nil
	}
	return nil
}
