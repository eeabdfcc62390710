package source

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/framescope/framescope/internal/frame"
	"github.com/framescope/framescope/internal/logger"
)

// Screen is a frame source that grabs a fixed rectangle of the X11 root
// window on every Next call and converts it to intensity. It stands in for
// a camera when none is attached, e.g. for pointing the pipeline at an
// instrument display.
type Screen struct {
	conn   *xgb.Conn
	root   xproto.Window
	x, y   int
	height int
	width  int
	closed bool
}

// OpenScreen connects to the X server and prepares capture of the region at
// (x, y) with the given size.
func OpenScreen(x, y, width, height int) (*Screen, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid capture region %dx%d", width, height)
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return nil, errors.Wrap(err, "connect to X server")
	}

	setup := xproto.Setup(conn)
	root := setup.DefaultScreen(conn).Root

	logger.WithComponent("screen").Info().
		Int("x", x).Int("y", y).
		Int("height", height).Int("width", width).
		Msg("Screen source open")

	return &Screen{
		conn:   conn,
		root:   root,
		x:      x,
		y:      y,
		height: height,
		width:  width,
	}, nil
}

// Next grabs the configured region. A failed GetImage round trip is
// transient (the server stays connected); a broken connection is fatal.
func (s *Screen) Next() (*frame.Frame, error) {
	if s.closed {
		return nil, Fatal(errors.New("screen source is closed"))
	}

	reply, err := xproto.GetImage(
		s.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(s.root),
		int16(s.x), int16(s.y),
		uint16(s.width), uint16(s.height),
		0xffffffff,
	).Reply()
	if err != nil {
		if _, ok := err.(xgb.Error); ok {
			return nil, Transient(errors.Wrap(err, "get image"))
		}
		return nil, Fatal(errors.Wrap(err, "X connection lost"))
	}

	data := reply.Data
	fr := frame.New(s.height, s.width)
	if len(data) < len(fr.Pix)*4 {
		return nil, Transient(errors.Errorf("short image reply: %d bytes", len(data)))
	}

	// BGRX pixels; Rec. 601 luma.
	for i := range fr.Pix {
		b := float32(data[i*4])
		g := float32(data[i*4+1])
		r := float32(data[i*4+2])
		fr.Pix[i] = 0.299*r + 0.587*g + 0.114*b
	}
	return fr, nil
}

// Height returns the capture region height.
func (s *Screen) Height() int {
	return s.height
}

// Width returns the capture region width.
func (s *Screen) Width() int {
	return s.width
}

// Name identifies the source for logging and status reporting.
func (s *Screen) Name() string {
	return "screen"
}

// Close releases the X connection. Idempotent.
func (s *Screen) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.conn.Close()
	return nil
}
