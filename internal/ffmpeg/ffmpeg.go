package ffmpeg

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/m-aliabbas/birthday-wisher/pkg/types"
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// CodecSettings is the encoding profile shared by every clip of a render so the
// final concat can stream-copy.
type CodecSettings struct {
	VideoCodec      string
	AudioCodec      string
	PixelFormat     string
	AudioSampleRate int
	AudioChannels   int
	ContainerFormat string
	FileExtension   string
	ContainerFlags  ffmpeg.KwArgs
}

var codecPresets = map[string]CodecSettings{
	"mp4": {
		VideoCodec:      "libx264",
		AudioCodec:      "aac",
		PixelFormat:     "yuv420p",
		AudioSampleRate: 44100,
		AudioChannels:   2,
		ContainerFormat: "mp4",
		FileExtension:   ".mp4",
		ContainerFlags: ffmpeg.KwArgs{
			"movflags": "+faststart",
		},
	},
}

// GetCodecSettings returns the profile for outputFormat, defaulting to mp4.
func GetCodecSettings(outputFormat string) CodecSettings {
	if settings, ok := codecPresets[outputFormat]; ok {
		return settings
	}
	return codecPresets["mp4"]
}

// VideoMetadata contains metadata about a media file
type VideoMetadata struct {
	Duration    float64 `json:"duration"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Codec       string  `json:"codec"`
	PixelFormat string  `json:"pixel_format"`
	FrameRate   float64 `json:"frame_rate"`

	HasAudio        bool   `json:"has_audio"`
	AudioCodec      string `json:"audio_codec,omitempty"`
	AudioSampleRate int    `json:"audio_sample_rate,omitempty"`
	AudioChannels   int    `json:"audio_channels,omitempty"`
}

// Prober reads media metadata.
type Prober interface {
	Probe(path string) (*VideoMetadata, error)
}

// ProbeCommand is the binary ffmpeg-go runs for probes. It is always looked up
// in PATH, independent of any configured ffmpeg path.
const ProbeCommand = "ffprobe"

// FFProbe probes files with ffprobe.
type FFProbe struct{}

func (FFProbe) Probe(path string) (*VideoMetadata, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, errors.Wrapf(types.ErrMediaProbe, "%s: %v", path, err)
	}
	md, err := ParseProbe([]byte(out))
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return md, nil
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		PixFmt     string `json:"pix_fmt"`
		RFrameRate string `json:"r_frame_rate"`
		Duration   string `json:"duration"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// ParseProbe decodes ffprobe JSON. The first video stream with a non-zero size
// defines the dimensions; its absence is an ErrMediaProbe.
func ParseProbe(data []byte) (*VideoMetadata, error) {
	var probe probeResult
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrapf(types.ErrMediaProbe, "decode ffprobe output: %v", err)
	}

	md := &VideoMetadata{}
	foundVideo := false
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			if foundVideo || s.Width <= 0 || s.Height <= 0 {
				continue
			}
			foundVideo = true
			md.Width = s.Width
			md.Height = s.Height
			md.Codec = s.CodecName
			md.PixelFormat = s.PixFmt
			md.FrameRate = parseFrameRate(s.RFrameRate)
			md.Duration = parseSeconds(s.Duration)
		case "audio":
			if md.HasAudio {
				continue
			}
			md.HasAudio = true
			md.AudioCodec = s.CodecName
			md.AudioChannels = s.Channels
			md.AudioSampleRate, _ = strconv.Atoi(s.SampleRate)
		}
	}

	if !foundVideo {
		return nil, errors.Wrap(types.ErrMediaProbe, "no video stream found")
	}
	if md.Duration == 0 {
		md.Duration = parseSeconds(probe.Format.Duration)
	}
	return md, nil
}

// SameCodecParameters reports why two clips could not be stream-copied together,
// or "" when they can.
func SameCodecParameters(a, b *VideoMetadata) string {
	switch {
	case a.Codec != b.Codec:
		return fmt.Sprintf("video codec %s != %s", a.Codec, b.Codec)
	case a.Width != b.Width || a.Height != b.Height:
		return fmt.Sprintf("size %dx%d != %dx%d", a.Width, a.Height, b.Width, b.Height)
	case a.PixelFormat != b.PixelFormat:
		return fmt.Sprintf("pixel format %s != %s", a.PixelFormat, b.PixelFormat)
	case a.HasAudio != b.HasAudio:
		return fmt.Sprintf("audio present %t != %t", a.HasAudio, b.HasAudio)
	case a.HasAudio && (a.AudioCodec != b.AudioCodec ||
		a.AudioSampleRate != b.AudioSampleRate || a.AudioChannels != b.AudioChannels):
		return fmt.Sprintf("audio %s/%dHz/%dch != %s/%dHz/%dch",
			a.AudioCodec, a.AudioSampleRate, a.AudioChannels,
			b.AudioCodec, b.AudioSampleRate, b.AudioChannels)
	}
	return ""
}

// FormatFloat renders filter parameters in their shortest form (0.3, not 0.300000).
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseSeconds(s string) float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return d
}

func parseFrameRate(rate string) float64 {
	nums := strings.Split(rate, "/")
	if len(nums) != 2 {
		return parseSeconds(rate)
	}
	num, err1 := strconv.ParseFloat(nums[0], 64)
	den, err2 := strconv.ParseFloat(nums[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
