package transcription

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/jobauth/internal/config"
)

// Test_CommandAudioDriver_ListDevices uses the "printf" builtin via sh -c to
// emit two tab-separated device lines, the contract ListDevicesCommand's
// stdout must follow.
func Test_CommandAudioDriver_ListDevices(t *testing.T) {
	d := NewCommandAudioDriver(config.TranscriptionConfig{
		ListDevicesCommand: []string{"/bin/sh", "-c", `printf "dev0\tBuilt-in Mic\ndev1\tUSB Headset\n"`},
	})

	devices, err := d.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(devices) != 2 || devices[0].ID != "dev0" || devices[1].Name != "USB Headset" {
		t.Fatalf("unexpected devices: %+v", devices)
	}
}

func Test_CommandAudioDriver_ListDevices_NoCommandConfigured(t *testing.T) {
	d := NewCommandAudioDriver(config.TranscriptionConfig{})
	if _, err := d.ListDevices(context.Background()); err == nil {
		t.Fatalf("expected an error when no list-devices command is configured")
	}
}

// Test_CommandAudioDriver_Capture feeds a fixed amount of zero-byte PCM
// through "dd" and checks it gets sliced into the expected number of
// WAV-wrapped chunks, each carrying a monotonically increasing index.
func Test_CommandAudioDriver_Capture(t *testing.T) {
	// 1 second of silence at 16kHz/16-bit mono = 32000 bytes. Ask for two
	// 0.5s chunks.
	d := NewCommandAudioDriver(config.TranscriptionConfig{
		CaptureCommand: []string{"/bin/sh", "-c", "dd if=/dev/zero bs=32000 count=1 2>/dev/null"},
	})

	var gotIdx []int
	var gotLens []int
	err := d.Capture(context.Background(), "dev0", 500*time.Millisecond, func(wav []byte, idx int) error {
		gotIdx = append(gotIdx, idx)
		gotLens = append(gotLens, len(wav))
		if !bytes.HasPrefix(wav, []byte("RIFF")) {
			t.Fatalf("expected chunk to carry a WAV header, got %x", wav[:4])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotIdx) != 2 || gotIdx[0] != 0 || gotIdx[1] != 1 {
		t.Fatalf("expected two sequential chunks, got %+v", gotIdx)
	}
	wantChunkBytes := 44 + 16000 // WAV header + 0.5s of 16kHz/16-bit PCM
	if gotLens[0] != wantChunkBytes {
		t.Fatalf("expected chunk of %d bytes, got %d", wantChunkBytes, gotLens[0])
	}
}

func Test_CommandAudioDriver_Capture_OnChunkErrorPropagates(t *testing.T) {
	d := NewCommandAudioDriver(config.TranscriptionConfig{
		CaptureCommand: []string{"/bin/sh", "-c", "dd if=/dev/zero bs=32000 count=1 2>/dev/null"},
	})

	boom := errChunkRejected("boom")
	err := d.Capture(context.Background(), "dev0", 500*time.Millisecond, func(wav []byte, idx int) error {
		return boom
	})
	if err != boom {
		t.Fatalf("expected onChunk's error to propagate, got %v", err)
	}
}

type errChunkRejected string

func (e errChunkRejected) Error() string { return string(e) }
