package source

import (
	"github.com/blackjack/webcam"
	"github.com/pkg/errors"

	"github.com/framescope/framescope/internal/frame"
	"github.com/framescope/framescope/internal/logger"
)

// V4L2 fourcc codes for the pixel formats we can convert to intensity.
const (
	fourccGREY webcam.PixelFormat = 0x59455247 // 8-bit greyscale
	fourccYUYV webcam.PixelFormat = 0x56595559 // YUYV 4:2:2, Y on even bytes
)

// waitForFrameTimeoutSec bounds the blocking device read inside Next.
const waitForFrameTimeoutSec = 2

// Camera is a live frame source backed by a V4L2 device. The device is
// opened and streaming is started up front, so the negotiated frame
// dimensions are known before the first Next call.
type Camera struct {
	cam    *webcam.Webcam
	device string
	format webcam.PixelFormat
	height int
	width  int
	closed bool
}

// OpenCamera opens the V4L2 device at path and negotiates a greyscale or
// YUYV stream. Zero width/height requests the device's preferred size.
func OpenCamera(device string, width, height int) (*Camera, error) {
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, errors.Wrapf(err, "open camera %s", device)
	}

	format, err := pickFormat(cam)
	if err != nil {
		cam.Close()
		return nil, err
	}

	f, w, h, err := cam.SetImageFormat(format, uint32(width), uint32(height))
	if err != nil {
		cam.Close()
		return nil, errors.Wrap(err, "set image format")
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, errors.Wrap(err, "start streaming")
	}

	c := &Camera{
		cam:    cam,
		device: device,
		format: f,
		height: int(h),
		width:  int(w),
	}

	logger.WithComponent("camera").Info().
		Str("device", device).
		Int("height", c.height).
		Int("width", c.width).
		Str("format", formatName(f)).
		Msg("Camera open")

	return c, nil
}

func pickFormat(cam *webcam.Webcam) (webcam.PixelFormat, error) {
	supported := cam.GetSupportedFormats()
	if _, ok := supported[fourccGREY]; ok {
		return fourccGREY, nil
	}
	if _, ok := supported[fourccYUYV]; ok {
		return fourccYUYV, nil
	}
	return 0, errors.New("camera supports neither GREY nor YUYV")
}

func formatName(f webcam.PixelFormat) string {
	if f == fourccGREY {
		return "GREY"
	}
	return "YUYV"
}

// Next performs one bounded device read and returns the frame converted to
// intensity. A frame timeout is transient; any other device failure is
// treated as a disconnect and reported fatal.
func (c *Camera) Next() (*frame.Frame, error) {
	if c.closed {
		return nil, Fatal(errors.New("camera is closed"))
	}

	if err := c.cam.WaitForFrame(waitForFrameTimeoutSec); err != nil {
		switch err.(type) {
		case *webcam.Timeout:
			return nil, Transient(err)
		default:
			return nil, Fatal(errors.Wrap(err, "wait for frame"))
		}
	}

	raw, err := c.cam.ReadFrame()
	if err != nil {
		return nil, Fatal(errors.Wrap(err, "read frame"))
	}
	if len(raw) == 0 {
		return nil, Transient(errors.New("empty frame from device"))
	}

	fr := frame.New(c.height, c.width)
	switch c.format {
	case fourccGREY:
		if len(raw) < len(fr.Pix) {
			return nil, Transient(errors.Errorf("short frame: %d bytes", len(raw)))
		}
		for i := range fr.Pix {
			fr.Pix[i] = float32(raw[i])
		}
	default: // YUYV: luma on even bytes
		if len(raw) < len(fr.Pix)*2 {
			return nil, Transient(errors.Errorf("short frame: %d bytes", len(raw)))
		}
		for i := range fr.Pix {
			fr.Pix[i] = float32(raw[i*2])
		}
	}
	return fr, nil
}

// Height returns the negotiated frame height.
func (c *Camera) Height() int {
	return c.height
}

// Width returns the negotiated frame width.
func (c *Camera) Width() int {
	return c.width
}

// Name identifies the source for logging and status reporting.
func (c *Camera) Name() string {
	return "camera:" + c.device
}

// Close stops streaming and releases the device. Idempotent.
func (c *Camera) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.cam.StopStreaming(); err != nil {
		logger.WithComponent("camera").Warn().Err(err).Msg("Stop streaming failed")
	}
	return c.cam.Close()
}
