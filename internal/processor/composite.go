package processor

import (
	"strconv"

	ffmpegWrap "github.com/m-aliabbas/birthday-wisher/internal/ffmpeg"
	"github.com/m-aliabbas/birthday-wisher/pkg/types"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// BuildComposite turns plan into a single ffmpeg invocation writing outputPath.
//
// Layers, back to front: black canvas, fitted photo at the placeholder, the
// template with its key color made transparent, and the optional border.
func BuildComposite(plan *Plan, outputPath string) *ffmpeg.Stream {
	tpl := ffmpeg.Input(plan.TemplateVideo)
	img := ffmpeg.Input(plan.Image, ffmpeg.KwArgs{"loop": 1})

	canvas := ffmpegWrap.ColorSource("black", plan.Canvas.Width, plan.Canvas.Height, plan.Encoding.FPS, 0)
	photo := FitPhoto(img.Video(), plan.Photo)
	stream := ffmpegWrap.OverlayAt(canvas, photo, itoa(plan.Placeholder.X), itoa(plan.Placeholder.Y), false)

	// The template is the only finite video input; it bounds the output.
	foreground := ChromaKeyStream(tpl.Video(), plan.Key)
	stream = ffmpegWrap.OverlayAt(stream, foreground, "0", "0", true)

	if plan.HasBorder() {
		border := ffmpeg.Input(plan.Border)
		stream = ffmpegWrap.OverlayAt(stream, border.Video(), "0", "0", false)
	}

	stream = stream.Filter("format", ffmpeg.Args{plan.Encoding.PixelFormat})

	streams := []*ffmpeg.Stream{stream}
	kwargs := encodingArgs(plan.Encoding)
	if plan.Encoding.KeepAudio {
		streams = append(streams, tpl.Audio())
		kwargs["shortest"] = ""
	}

	return ffmpeg.Output(streams, outputPath, kwargs)
}

// FitPhoto scales the photo and crops (cover) or pads (contain) it to the placeholder.
func FitPhoto(stream *ffmpeg.Stream, g FitGeometry) *ffmpeg.Stream {
	stream = stream.Filter("scale", ffmpeg.Args{itoa(g.Scaled.Width), itoa(g.Scaled.Height)})

	if g.Fit == types.FitContain {
		return stream.Filter("pad", ffmpeg.Args{
			itoa(g.Final.Width), itoa(g.Final.Height), itoa(g.OffX), itoa(g.OffY), "black",
		})
	}
	return stream.Filter("crop", ffmpeg.Args{
		itoa(g.Final.Width), itoa(g.Final.Height), itoa(g.OffX), itoa(g.OffY),
	})
}

// ChromaKeyStream makes pixels within key.Similarity of key.Color transparent.
func ChromaKeyStream(stream *ffmpeg.Stream, key ChromaKey) *ffmpeg.Stream {
	return stream.
		Filter("format", ffmpeg.Args{"rgba"}).
		Filter("colorkey", ffmpeg.Args{key.Color, key.Similarity, key.Blend})
}

func encodingArgs(enc Encoding) ffmpeg.KwArgs {
	kwargs := ffmpeg.KwArgs{
		"r":       enc.FPS,
		"c:v":     enc.VideoCodec,
		"crf":     enc.CRF,
		"preset":  string(enc.Preset),
		"pix_fmt": enc.PixelFormat,
	}
	for k, v := range ffmpegWrap.GetCodecSettings("mp4").ContainerFlags {
		kwargs[k] = v
	}
	if enc.KeepAudio {
		kwargs["c:a"] = enc.AudioCodec
		kwargs["ar"] = enc.AudioSampleRate
		kwargs["ac"] = enc.AudioChannels
	}
	return kwargs
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
