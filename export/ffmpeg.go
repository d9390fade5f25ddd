// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package export

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gogpu/reel"
	"github.com/gogpu/reel/media"
)

// FFmpegEncoder pipes raw frames into a local ffmpeg process. Video is
// encoded to an intermediate file while frames stream in; Finish then
// muxes the soundtrack in a second pass, or just moves the file into
// place when the timeline is silent.
//
// The codec is picked per job from what the installed ffmpeg actually
// provides: h264_nvenc when the config allows hardware, then libx264,
// then the ancient but universal mpeg4.
type FFmpegEncoder struct {
	exec *media.Executor

	info   StreamInfo
	codec  string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	tmp    string
	frames int
}

// NewFFmpegEncoder returns an encoder using exec's ffmpeg. A nil exec
// is legal and makes Begin report ErrUnavailable, which keeps the
// fallback chain uniform on hosts without ffmpeg.
func NewFFmpegEncoder(exec *media.Executor) *FFmpegEncoder {
	return &FFmpegEncoder{exec: exec}
}

func (e *FFmpegEncoder) Name() string { return "ffmpeg" }

func (e *FFmpegEncoder) Begin(ctx context.Context, info StreamInfo) error {
	if e.exec == nil {
		return fmt.Errorf("%w: ffmpeg not installed", ErrUnavailable)
	}

	codec, err := e.pickCodec(ctx, info.Config)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	e.info = info
	e.codec = codec
	e.tmp = info.Path + ".video" + info.Config.Format.Ext()

	cmd := e.exec.Command(ctx, videoArgs(codec, info, e.tmp)...)
	cmd.Stderr = &e.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start ffmpeg: %v", ErrUnavailable, err)
	}
	e.cmd = cmd
	e.stdin = stdin

	reel.Logger().Debug("export: ffmpeg encoder started",
		"codec", codec, "size", fmt.Sprintf("%dx%d", info.Width, info.Height))
	return nil
}

// WriteFrame streams one frame's pixels to ffmpeg. The keyframe flag
// is unused here: cadence is fixed for the whole stream with -g at
// Begin, which is the only way to control grouping over a raw pipe.
func (e *FFmpegEncoder) WriteFrame(ctx context.Context, frame *image.NRGBA, pts int64, keyframe bool) error {
	if e.stdin == nil {
		return fmt.Errorf("%w: encoder not started", ErrEncoder)
	}
	if _, err := e.stdin.Write(frame.Pix); err != nil {
		return fmt.Errorf("%w: frame %d: %v%s", ErrEncoder, e.frames, err, e.stderrTail())
	}
	e.frames++
	return nil
}

func (e *FFmpegEncoder) Finish(ctx context.Context) (string, error) {
	if e.cmd == nil {
		return "", fmt.Errorf("%w: encoder not started", ErrEncoder)
	}
	_ = e.stdin.Close()
	e.stdin = nil
	if err := e.cmd.Wait(); err != nil {
		e.cmd = nil
		return "", fmt.Errorf("%w: %v%s", ErrEncoder, err, e.stderrTail())
	}
	e.cmd = nil
	if e.frames == 0 {
		_ = os.Remove(e.tmp)
		return "", fmt.Errorf("%w: no frames written", ErrEncoder)
	}

	if e.info.Audio == nil || len(e.info.Audio.Data) == 0 {
		if err := moveFile(e.tmp, e.info.Path); err != nil {
			return "", fmt.Errorf("%w: %v", ErrEncoder, err)
		}
		return e.info.Path, nil
	}

	wav := e.info.Path + ".audio.wav"
	if err := writeWAVFile(wav, e.info.Audio); err != nil {
		_ = os.Remove(e.tmp)
		return "", fmt.Errorf("%w: %v", ErrEncoder, err)
	}
	defer os.Remove(wav)
	defer os.Remove(e.tmp)

	if err := e.exec.Run(ctx, media.RunOptions{Args: muxArgs(e.tmp, wav, e.info)}); err != nil {
		return "", fmt.Errorf("%w: mux audio: %v", ErrEncoder, err)
	}
	return e.info.Path, nil
}

func (e *FFmpegEncoder) Abort() {
	if e.stdin != nil {
		_ = e.stdin.Close()
		e.stdin = nil
	}
	if e.cmd != nil {
		if e.cmd.Process != nil {
			_ = e.cmd.Process.Kill()
		}
		_ = e.cmd.Wait()
		e.cmd = nil
	}
	if e.tmp != "" {
		_ = os.Remove(e.tmp)
	}
}

// stderrTail returns the last ffmpeg log line for error messages. The
// executor runs with -v error, so anything here is the actual cause.
func (e *FFmpegEncoder) stderrTail() string {
	s := strings.TrimSpace(e.stderr.String())
	if s == "" {
		return ""
	}
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return ": " + s
}

// pickCodec returns the first codec of the ladder for the requested
// container that the installed ffmpeg provides.
func (e *FFmpegEncoder) pickCodec(ctx context.Context, cfg Config) (string, error) {
	available, err := e.listEncoders(ctx)
	if err != nil {
		return "", err
	}
	ladder := codecLadder(cfg)
	for _, c := range ladder {
		if available[c] {
			return c, nil
		}
	}
	return "", fmt.Errorf("no encoder for %s in %v", cfg.Format, ladder)
}

// listEncoders parses `ffmpeg -encoders` output into a name set.
func (e *FFmpegEncoder) listEncoders(ctx context.Context) (map[string]bool, error) {
	cmd := e.exec.Command(ctx, "-hide_banner", "-encoders")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("list encoders: %w", err)
	}
	return parseEncoders(bytes.NewReader(out)), nil
}

// parseEncoders reads the -encoders listing. Lines look like
// " V....D libx264  libx264 H.264 / AVC ..."; the second field is the
// encoder name once the legend header is skipped.
func parseEncoders(r io.Reader) map[string]bool {
	names := make(map[string]bool)
	sc := bufio.NewScanner(r)
	body := false
	for sc.Scan() {
		line := sc.Text()
		if !body {
			// The legend ends with a separator line of dashes.
			if strings.Contains(line, "------") {
				body = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && strings.HasPrefix(fields[0], "V") {
			names[fields[1]] = true
		}
	}
	return names
}

// codecLadder returns candidate codecs for the container, best first.
func codecLadder(cfg Config) []string {
	switch cfg.Format {
	case FormatWebM:
		return []string{"libvpx-vp9", "libvpx"}
	case FormatAVI:
		return []string{"mpeg4"}
	default:
		if cfg.UseGPU {
			return []string{"h264_nvenc", "libx264", "mpeg4"}
		}
		return []string{"libx264", "mpeg4"}
	}
}

// videoArgs builds the encode command: raw RGBA on stdin, one codec
// pass to out. The executor prepends -y and -v error.
func videoArgs(codec string, info StreamInfo, out string) []string {
	args := []string{
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"-framerate", formatFPS(info.FPS),
		"-i", "-",
		"-an",
		"-c:v", codec,
	}
	args = append(args, codecArgs(codec, info.Config.Quality)...)
	args = append(args,
		"-g", strconv.Itoa(keyframeInterval),
		"-pix_fmt", "yuv420p",
	)
	if info.Config.Format == FormatMP4 || info.Config.Format == FormatMOV {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, out)
}

// codecArgs returns the per-codec quality flags.
func codecArgs(codec string, q Quality) []string {
	switch codec {
	case "libx264":
		return []string{"-preset", "medium", "-crf", strconv.Itoa(q.crf())}
	case "h264_nvenc":
		return []string{"-preset", "p4", "-rc", "vbr", "-cq", strconv.Itoa(q.crf())}
	case "libvpx-vp9":
		return []string{"-b:v", "0", "-crf", strconv.Itoa(q.crf())}
	case "libvpx":
		return []string{"-b:v", vpxBitrate(q)}
	case "mpeg4":
		return []string{"-q:v", strconv.Itoa(mpeg4Q(q))}
	default:
		return nil
	}
}

func vpxBitrate(q Quality) string {
	switch q {
	case QualityLow:
		return "1M"
	case QualityMedium:
		return "2M"
	case QualityBest:
		return "8M"
	default:
		return "4M"
	}
}

// mpeg4Q maps the tier onto the 2 to 31 qscale, lower better.
func mpeg4Q(q Quality) int {
	switch q {
	case QualityLow:
		return 12
	case QualityMedium:
		return 8
	case QualityBest:
		return 2
	default:
		return 5
	}
}

// muxArgs joins the encoded video with the soundtrack, copying video
// and encoding audio to the container's usual codec.
func muxArgs(video, audio string, info StreamInfo) []string {
	args := []string{
		"-i", video,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
	}
	switch info.Config.Format {
	case FormatWebM:
		args = append(args, "-c:a", "libopus", "-b:a", "128k")
	case FormatAVI:
		args = append(args, "-c:a", "pcm_s16le")
	default:
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	}
	args = append(args, "-shortest")
	if info.Config.Format == FormatMP4 || info.Config.Format == FormatMOV {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, info.Path)
}

func formatFPS(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

// moveFile renames src to dst, copying when rename fails across
// filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return err
	}
	return os.Remove(src)
}
