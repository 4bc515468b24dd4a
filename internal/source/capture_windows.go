//go:build windows

package source

import (
	"fmt"
	"image"
	"log/slog"
	"syscall"
	"time"
	"unsafe"

	"github.com/takeonehq/recorder/internal/logging"
)

var (
	user32 = syscall.NewLazyDLL("user32.dll")
	gdi32  = syscall.NewLazyDLL("gdi32.dll")

	procGetDC                = user32.NewProc("GetDC")
	procReleaseDC            = user32.NewProc("ReleaseDC")
	procGetSystemMetrics     = user32.NewProc("GetSystemMetrics")
	procEnumDisplayDevicesW  = user32.NewProc("EnumDisplayDevicesW")
	procCreateDCW            = gdi32.NewProc("CreateDCW")
	procCreateCompatibleDC   = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBmp  = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject         = gdi32.NewProc("SelectObject")
	procBitBlt               = gdi32.NewProc("BitBlt")
	procGetDIBits            = gdi32.NewProc("GetDIBits")
	procGetDeviceCaps        = gdi32.NewProc("GetDeviceCaps")
	procDeleteObject         = gdi32.NewProc("DeleteObject")
	procDeleteDC             = gdi32.NewProc("DeleteDC")
)

const (
	smCxScreen  = 0
	smCyScreen  = 1
	horzRes     = 8
	vertRes     = 10
	srcCopy     = 0x00CC0020
	captureBlt  = 0x40000000
	diRGBColors = 0
	biRGB       = 0

	displayDeviceActive = 0x00000001
	displayDeviceMirror = 0x00000008
)

type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

type displayDeviceW struct {
	CB           uint32
	DeviceName   [32]uint16
	DeviceString [128]uint16
	StateFlags   uint32
	DeviceID     [128]uint16
	DeviceKey    [128]uint16
}

// gdiCapturer grabs display frames through GDI. Handles are created
// once and reused per frame; GDI object churn is what makes naive
// capturers slow.
type gdiCapturer struct {
	log      *slog.Logger
	screenDC uintptr
	memDC    uintptr
	bitmap   uintptr
	oldBmp   uintptr
	released bool
	width    int
	height   int
	pixBuf   []byte
	img      *image.RGBA

	failStreak int
	lastWarn   time.Time
}

func newPlatformCapturer(displayIndex int) (ScreenCapturer, error) {
	log := logging.L("capture")

	screenDC, fromGetDC, err := openDisplayDC(displayIndex)
	if err != nil {
		return nil, err
	}

	width := deviceCaps(screenDC, horzRes)
	height := deviceCaps(screenDC, vertRes)
	if width <= 0 || height <= 0 {
		width = systemMetric(smCxScreen)
		height = systemMetric(smCyScreen)
	}
	if width <= 0 || height <= 0 {
		releaseDisplayDC(screenDC, fromGetDC)
		return nil, fmt.Errorf("screen dimensions unavailable: %w", ErrDeviceUnavailable)
	}

	memDC, _, _ := procCreateCompatibleDC.Call(screenDC)
	if memDC == 0 {
		releaseDisplayDC(screenDC, fromGetDC)
		return nil, fmt.Errorf("CreateCompatibleDC failed: %w", ErrDeviceUnavailable)
	}
	bitmap, _, _ := procCreateCompatibleBmp.Call(screenDC, uintptr(width), uintptr(height))
	if bitmap == 0 {
		procDeleteDC.Call(memDC)
		releaseDisplayDC(screenDC, fromGetDC)
		return nil, fmt.Errorf("CreateCompatibleBitmap failed: %w", ErrDeviceUnavailable)
	}
	oldBmp, _, _ := procSelectObject.Call(memDC, bitmap)

	log.Info("gdi capturer ready", "display", displayIndex, "width", width, "height", height)
	return &gdiCapturer{
		log:      log,
		screenDC: screenDC,
		memDC:    memDC,
		bitmap:   bitmap,
		oldBmp:   oldBmp,
		released: !fromGetDC,
		width:    width,
		height:   height,
		pixBuf:   make([]byte, width*height*4),
		img:      image.NewRGBA(image.Rect(0, 0, width, height)),
	}, nil
}

// openDisplayDC opens a DC for the requested display. Index 0 is the
// primary; higher indexes are resolved through device enumeration.
// The second return reports whether the DC came from GetDC and must be
// released rather than deleted.
func openDisplayDC(displayIndex int) (uintptr, bool, error) {
	if displayIndex > 0 {
		name, err := displayDeviceName(displayIndex)
		if err != nil {
			return 0, false, err
		}
		dc, _, _ := procCreateDCW.Call(0, uintptr(unsafe.Pointer(name)), 0, 0)
		if dc == 0 {
			return 0, false, fmt.Errorf("CreateDCW for display %d failed: %w", displayIndex, ErrDeviceUnavailable)
		}
		return dc, false, nil
	}

	driver, _ := syscall.UTF16PtrFromString("DISPLAY")
	dc, _, _ := procCreateDCW.Call(uintptr(unsafe.Pointer(driver)), 0, 0, 0)
	if dc != 0 {
		return dc, false, nil
	}
	dc, _, _ = procGetDC.Call(0)
	if dc == 0 {
		return 0, false, fmt.Errorf("no display DC: %w", ErrDeviceUnavailable)
	}
	return dc, true, nil
}

// displayDeviceName walks active, non-mirroring display adapters and
// returns the name of the n-th one.
func displayDeviceName(displayIndex int) (*uint16, error) {
	active := 0
	for dev := uint32(0); dev < 32; dev++ {
		var dd displayDeviceW
		dd.CB = uint32(unsafe.Sizeof(dd))
		ok, _, _ := procEnumDisplayDevicesW.Call(0, uintptr(dev), uintptr(unsafe.Pointer(&dd)), 0)
		if ok == 0 {
			break
		}
		if dd.StateFlags&displayDeviceActive == 0 || dd.StateFlags&displayDeviceMirror != 0 {
			continue
		}
		if active == displayIndex {
			return &dd.DeviceName[0], nil
		}
		active++
	}
	return nil, fmt.Errorf("display %d not found: %w", displayIndex, ErrDeviceUnavailable)
}

func systemMetric(index int) int {
	v, _, _ := procGetSystemMetrics.Call(uintptr(index))
	return int(v)
}

func deviceCaps(dc uintptr, index int) int {
	v, _, _ := procGetDeviceCaps.Call(dc, uintptr(index))
	return int(v)
}

// Capture grabs one frame. BitBlt can fail while the secure desktop is
// up (UAC, lock screen); those failures are transient and return
// (nil, nil) so the caller skips the tick.
func (c *gdiCapturer) Capture() (*image.RGBA, error) {
	ok, _, _ := procBitBlt.Call(c.memDC, 0, 0, uintptr(c.width), uintptr(c.height),
		c.screenDC, 0, 0, srcCopy|captureBlt)
	if ok == 0 {
		// Some remote sessions reject CAPTUREBLT; retry without it.
		ok, _, _ = procBitBlt.Call(c.memDC, 0, 0, uintptr(c.width), uintptr(c.height),
			c.screenDC, 0, 0, srcCopy)
	}
	if ok == 0 {
		c.failStreak++
		if time.Since(c.lastWarn) > 2*time.Second {
			c.log.Warn("BitBlt failing", "streak", c.failStreak)
			c.lastWarn = time.Now()
		}
		return nil, nil
	}
	c.failStreak = 0

	hdr := bitmapInfoHeader{
		Width:    int32(c.width),
		Height:   -int32(c.height), // negative height selects top-down rows
		Planes:   1,
		BitCount: 32,
	}
	hdr.Size = uint32(unsafe.Sizeof(hdr))
	hdr.Compression = biRGB

	lines, _, _ := procGetDIBits.Call(c.memDC, c.bitmap, 0, uintptr(c.height),
		uintptr(unsafe.Pointer(&c.pixBuf[0])), uintptr(unsafe.Pointer(&hdr)), diRGBColors)
	if int(lines) != c.height {
		return nil, fmt.Errorf("GetDIBits returned %d of %d lines", int(lines), c.height)
	}

	bgraToRGBA(c.pixBuf, c.img.Pix, c.width*c.height)
	return c.img, nil
}

func (c *gdiCapturer) ScreenBounds() (int, int, error) {
	return c.width, c.height, nil
}

func (c *gdiCapturer) Close() error {
	if c.oldBmp != 0 {
		procSelectObject.Call(c.memDC, c.oldBmp)
	}
	if c.bitmap != 0 {
		procDeleteObject.Call(c.bitmap)
	}
	if c.memDC != 0 {
		procDeleteDC.Call(c.memDC)
	}
	if c.screenDC != 0 {
		if c.released {
			procDeleteDC.Call(c.screenDC)
		} else {
			procReleaseDC.Call(0, c.screenDC)
		}
	}
	c.screenDC, c.memDC, c.bitmap, c.oldBmp = 0, 0, 0, 0
	return nil
}

// bgraToRGBA swaps channel order for count pixels. GDI leaves alpha
// undefined, so it is forced opaque.
func bgraToRGBA(src, dst []byte, count int) {
	n := count * 4
	if len(src) < n || len(dst) < n {
		return
	}
	for i := 0; i < n; i += 4 {
		dst[i] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i]
		dst[i+3] = 0xff
	}
}
