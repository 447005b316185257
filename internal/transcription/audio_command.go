package transcription

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/nextlevelbuilder/jobauth/internal/config"
)

const (
	sampleRateHz  = 16000
	bytesPerFrame = 2 // 16-bit mono PCM
)

// CommandAudioDriver implements AudioDriver by shelling out to whatever
// audio-capture tool is installed on the host (arecord, ffmpeg, sox),
// the same os/exec.CommandContext idiom ShellHandler uses to run a job's
// dangerous-shell script (§4.5). CaptureCommand's stdout must be a raw
// 16kHz mono 16-bit PCM stream; this driver slices it into fixed-duration
// WAV chunks and hands each to onChunk in order.
type CommandAudioDriver struct {
	cfg config.TranscriptionConfig
}

func NewCommandAudioDriver(cfg config.TranscriptionConfig) *CommandAudioDriver {
	return &CommandAudioDriver{cfg: cfg}
}

func (d *CommandAudioDriver) ListDevices(ctx context.Context) ([]Device, error) {
	if len(d.cfg.ListDevicesCommand) == 0 {
		return nil, fmt.Errorf("transcription: no device-listing command configured")
	}

	cmd := exec.CommandContext(ctx, d.cfg.ListDevicesCommand[0], d.cfg.ListDevicesCommand[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("transcription: list devices: %s", stderr.String())
	}

	var devices []Device
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := scanner.Text()
		id, name, ok := strings.Cut(line, "\t")
		if !ok || id == "" {
			continue
		}
		devices = append(devices, Device{ID: id, Name: name})
	}
	return devices, nil
}

// Capture runs CaptureCommand with "{device}" substituted for deviceID,
// reads its raw PCM stdout in chunkDuration-sized windows, and calls onChunk
// with each window wrapped in a minimal WAV header. onChunk is invoked
// sequentially and its errors propagate, per the interface contract.
func (d *CommandAudioDriver) Capture(ctx context.Context, deviceID string, chunkDuration time.Duration, onChunk func(wav []byte, idx int) error) error {
	if len(d.cfg.CaptureCommand) == 0 {
		return fmt.Errorf("transcription: no capture command configured")
	}

	argv := make([]string, len(d.cfg.CaptureCommand))
	for i, a := range d.cfg.CaptureCommand {
		argv[i] = strings.ReplaceAll(a, "{device}", deviceID)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("transcription: attach capture stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("transcription: start capture command: %w", err)
	}

	chunkBytes := int(chunkDuration.Seconds() * sampleRateHz * bytesPerFrame)
	if chunkBytes <= 0 {
		cmd.Process.Kill()
		return fmt.Errorf("transcription: chunk duration too small")
	}

	idx := 0
	buf := make([]byte, chunkBytes)
	var captureErr error
	for {
		n, err := io.ReadFull(stdout, buf)
		if n > 0 {
			if cbErr := onChunk(wrapWAV(buf[:n]), idx); cbErr != nil {
				captureErr = cbErr
				break
			}
			idx++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			captureErr = fmt.Errorf("transcription: read capture stdout: %w", err)
			break
		}
	}

	cmd.Process.Kill()
	cmd.Wait()

	if captureErr != nil {
		return captureErr
	}
	return ctx.Err()
}

// wrapWAV prefixes raw 16kHz mono 16-bit PCM samples with a canonical
// 44-byte WAV header so the STT proxy receives a self-describing file.
func wrapWAV(pcm []byte) []byte {
	var buf bytes.Buffer
	dataLen := uint32(len(pcm))
	byteRate := uint32(sampleRateHz * bytesPerFrame)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16)) // PCM fmt chunk size
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // PCM format tag
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRateHz))
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, uint16(bytesPerFrame))
	binary.Write(&buf, binary.LittleEndian, uint16(bytesPerFrame*8))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)

	return buf.Bytes()
}
