// Package gstfile decodes local video files into capture frames using
// GStreamer.
//
// # Quick Start
//
//	loop, err := gstfile.OpenFile(ctx, gstfile.FileConfig{
//	    Path:   "videos/door.mp4",
//	    Width:  720,
//	    Height: 480,
//	    Source: "door",
//	})
//	if err != nil {
//	    return err // missing file or broken pipeline: caller aborts
//	}
//	defer loop.Close()
//
// # Pipeline
//
//	filesrc → decodebin → videoconvert → videoscale → capsfilter(RGB, W×H) → appsink
//
// decodebin exposes its video pad dynamically; it is linked in the
// pad-added callback. appsink runs with sync=false and a small buffer so
// decoding is paced by the consumer. The file's frame rate is read from the
// negotiated caps of the first sample.
package gstfile
