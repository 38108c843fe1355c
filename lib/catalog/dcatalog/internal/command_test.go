package internal

import "testing"

func TestCommandSizeBytes(t *testing.T) {
	cmd := Command{Type: CommandTPut, Key: "testkey", Value: []byte("testvalue")}
	want := 1 + 4 + 7 + 9 // Type + KeyLen + Key + Value
	if got := cmd.SizeBytes(); got != want {
		t.Fatalf("SizeBytes() = %d, want %d", got, want)
	}
}

func TestCommandSerializeDeserializeRoundTrips(t *testing.T) {
	tests := []Command{
		{Type: CommandTPut, Key: "testkey", Value: []byte("testvalue")},
		{Type: CommandTDelete, Key: "testkey"},
		{Type: CommandTPut, Key: "", Value: []byte("v")},
	}
	for _, cmd := range tests {
		buf := cmd.Serialize()
		var got Command
		if err := got.Deserialize(buf); err != nil {
			t.Fatalf("Deserialize failed: %v", err)
		}
		if got.Type != cmd.Type || got.Key != cmd.Key || string(got.Value) != string(cmd.Value) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, cmd)
		}
	}
}

func TestCommandDeserializeRejectsTruncatedData(t *testing.T) {
	var cmd Command
	if err := cmd.Deserialize([]byte{1, 2}); err == nil {
		t.Fatal("expected an error for too-short data")
	}
}
