// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

// Package transcoder converts clip preview mp4 files into animated
// thumbnails by shelling out to ffmpeg.
package transcoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/halcyonlabs/nestkit"
	"github.com/halcyonlabs/nestkit/internal/logging"
)

// Transcoder converts a clip file into a downscaled animated preview.
type Transcoder interface {
	// TranscodeClip reads inputFile and writes the thumbnail to outputFile,
	// both relative to the transcoder's path prefix. The input must exist
	// and the output must not.
	TranscodeClip(ctx context.Context, inputFile, outputFile string) error
}

// FFmpeg runs the ffmpeg binary to produce thumbnails.
type FFmpeg struct {
	binary     string
	pathPrefix string
}

// NewFFmpeg returns a Transcoder that invokes the given ffmpeg binary and
// resolves file names under pathPrefix.
func NewFFmpeg(binary, pathPrefix string) *FFmpeg {
	return &FFmpeg{binary: binary, pathPrefix: pathPrefix}
}

// TranscodeClip produces a slowed, 320px-wide looping thumbnail from an mp4
// clip.
func (f *FFmpeg) TranscodeClip(ctx context.Context, inputFile, outputFile string) error {
	input := filepath.Join(f.pathPrefix, inputFile)
	output := filepath.Join(f.pathPrefix, outputFile)
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("%w: input file %s: %v", nestkit.ErrTranscode, input, err)
	}
	if _, err := os.Stat(output); err == nil {
		return fmt.Errorf("%w: output file already exists: %s", nestkit.ErrTranscode, output)
	}

	cmd := exec.CommandContext(ctx, f.binary,
		"-y",
		"-i", input,
		"-vf", "setpts=2.0*PTS",
		"-vf", "scale=320:-1,setsar=1:1",
		"-r", "4",
		"-loop", "0",
		output,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if len(out) > 0 {
			logging.Debug().Str("binary", f.binary).Bytes("output", out).Msg("Transcode output")
		}
		return fmt.Errorf("%w: %s: %v", nestkit.ErrTranscode, f.binary, err)
	}
	return nil
}
