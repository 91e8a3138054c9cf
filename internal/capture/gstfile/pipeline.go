package gstfile

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

var gstInitOnce sync.Once

func initGStreamer() {
	gstInitOnce.Do(func() {
		gst.Init(nil)
	})
}

// PipelineElements holds references to GStreamer pipeline elements
// needed for rewinding and cleanup
type PipelineElements struct {
	Pipeline *gst.Pipeline
	AppSink  *app.Sink
	Convert  *gst.Element
}

// CreateFilePipeline creates a decode pipeline for a local video file
//
// Pipeline structure:
//
//	filesrc → decodebin → videoconvert → videoscale → capsfilter → appsink
//
// The pipeline is configured but NOT started (state remains NULL).
func CreateFilePipeline(cfg FileConfig) (*PipelineElements, error) {
	initGStreamer()

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	filesrc, err := gst.NewElement("filesrc")
	if err != nil {
		return nil, fmt.Errorf("failed to create filesrc: %w", err)
	}
	if err := filesrc.SetProperty("location", cfg.Path); err != nil {
		return nil, fmt.Errorf("failed to set filesrc location: %w", err)
	}

	decodebin, err := gst.NewElement("decodebin")
	if err != nil {
		return nil, fmt.Errorf("failed to create decodebin: %w", err)
	}

	videoconvert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	videoconvert.SetProperty("n-threads", uint(0)) // 0 = auto-detect cores

	videoscale, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(buildRGBCaps(cfg.Width, cfg.Height)))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // consumer paces playback
	appsink.SetProperty("max-buffers", 2) // bounded decode-ahead
	appsink.SetProperty("drop", false)    // every frame of the file is shown

	if err := pipeline.AddMany(filesrc, decodebin, videoconvert, videoscale, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to add pipeline elements: %w", err)
	}

	if err := filesrc.Link(decodebin); err != nil {
		return nil, fmt.Errorf("failed to link filesrc: %w", err)
	}
	if err := gst.ElementLinkMany(videoconvert, videoscale, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	// decodebin pads appear once the container is parsed
	decodebin.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		onPadAdded(srcPad, videoconvert)
	})

	return &PipelineElements{
		Pipeline: pipeline,
		AppSink:  appsink,
		Convert:  videoconvert,
	}, nil
}

// onPadAdded links the decodebin video pad to videoconvert. Audio pads are ignored.
func onPadAdded(srcPad *gst.Pad, sinkElement *gst.Element) {
	if caps := srcPad.GetCurrentCaps(); caps != nil && !strings.HasPrefix(caps.String(), "video/") {
		slog.Debug("capture: ignoring non-video pad", "pad", srcPad.GetName())
		return
	}

	sinkPad := sinkElement.GetStaticPad("sink")
	if sinkPad == nil {
		slog.Error("capture: failed to get sink pad from videoconvert")
		return
	}
	if sinkPad.IsLinked() {
		return
	}

	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		slog.Error("capture: failed to link pads",
			"src_pad", srcPad.GetName(),
			"ret", ret,
		)
		return
	}

	slog.Debug("capture: decodebin pad linked", "src_pad", srcPad.GetName())
}

// DestroyPipeline sets the pipeline to NULL, releasing decoder resources.
// Safe to call with nil.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}

	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}

	return nil
}

// buildRGBCaps locks the appsink format to packed RGB at the output size
func buildRGBCaps(width, height int) string {
	return fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d", width, height)
}
