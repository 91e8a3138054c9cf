// Package capture defines decoded video frames and turns finite decoders
// into endless camera sources.
//
// The package has no cgo dependency. The GStreamer file decoder lives in
// capture/gstfile.
//
// # Looping
//
//	loop := capture.NewLoop(dec, "door")
//	defer loop.Close()
//
//	for {
//	    frame, err := loop.Next(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    // frame.Data is RGB, frame.Height rows of frame.Stride bytes
//	}
//
// A Decoder reports end of file with io.EOF. Loop rewinds the decoder and
// keeps reading, so Next never reports end of stream. Frame.Index restarts
// at zero on every pass while Frame.Seq keeps growing.
//
// # Statistics
//
// Stats carries loop counters and the native frame rate reported by the
// decoder. Meter measures the real delivery rate of a session.
package capture
