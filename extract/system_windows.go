//go:build windows

package extract

import (
	"image"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/meigma/iconcache/bitmap"
)

var (
	shell32 = windows.NewLazySystemDLL("shell32.dll")
	user32  = windows.NewLazySystemDLL("user32.dll")
	gdi32   = windows.NewLazySystemDLL("gdi32.dll")

	procSHGetFileInfoW     = shell32.NewProc("SHGetFileInfoW")
	procGetIconInfo        = user32.NewProc("GetIconInfo")
	procDestroyIcon        = user32.NewProc("DestroyIcon")
	procGetDC              = user32.NewProc("GetDC")
	procReleaseDC          = user32.NewProc("ReleaseDC")
	procGetObjectW         = gdi32.NewProc("GetObjectW")
	procGetDIBits          = gdi32.NewProc("GetDIBits")
	procDeleteObject       = gdi32.NewProc("DeleteObject")
	procCreateCompatibleDC = gdi32.NewProc("CreateCompatibleDC")
	procDeleteDC           = gdi32.NewProc("DeleteDC")
)

const (
	shgfiIcon      = 0x000000100
	shgfiLargeIcon = 0x000000000
	shgfiSmallIcon = 0x000000001
	dibRGBColors   = 0
	biRGB          = 0
)

type shFileInfo struct {
	hIcon         windows.Handle
	iIcon         int32
	dwAttributes  uint32
	szDisplayName [windows.MAX_PATH]uint16
	szTypeName    [80]uint16
}

type iconInfo struct {
	fIcon    int32
	xHotspot uint32
	yHotspot uint32
	hbmMask  windows.Handle
	hbmColor windows.Handle
}

type gdiBitmap struct {
	bmType       int32
	bmWidth      int32
	bmHeight     int32
	bmWidthBytes int32
	bmPlanes     uint16
	bmBitsPixel  uint16
	bmBits       uintptr
}

type bitmapInfoHeader struct {
	biSize          uint32
	biWidth         int32
	biHeight        int32
	biPlanes        uint16
	biBitCount      uint16
	biCompression   uint32
	biSizeImage     uint32
	biXPelsPerMeter int32
	biYPelsPerMeter int32
	biClrUsed       uint32
	biClrImportant  uint32
}

type bitmapInfo struct {
	header bitmapInfoHeader
	colors [1]uint32
}

// System asks the Windows shell for the icon it shows for a file.
type System struct{}

// NewSystem returns the shell icon strategy.
func NewSystem() *System { return &System{} }

// Name implements Strategy.
func (*System) Name() string { return "shell" }

// TryExtract implements Strategy. Sizes up to 16 use the small shell icon.
func (*System) TryExtract(path string, size int) (*bitmap.Bitmap, bool) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, false
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := windows.CoInitializeEx(0, windows.COINIT_APARTMENTTHREADED); err == nil {
		defer windows.CoUninitialize()
	}

	flags := uintptr(shgfiIcon | shgfiLargeIcon)
	if size <= 16 {
		flags = shgfiIcon | shgfiSmallIcon
	}
	var info shFileInfo
	ret, _, _ := procSHGetFileInfoW.Call(
		uintptr(unsafe.Pointer(p)),
		0,
		uintptr(unsafe.Pointer(&info)),
		unsafe.Sizeof(info),
		flags,
	)
	if ret == 0 || info.hIcon == 0 {
		return nil, false
	}
	defer procDestroyIcon.Call(uintptr(info.hIcon)) //nolint:errcheck // best effort release

	img, ok := iconToImage(info.hIcon)
	if !ok {
		return nil, false
	}
	b, err := bitmap.New(img, bitmap.KindExtracted, "")
	if err != nil {
		return nil, false
	}
	return b, true
}

// iconToImage copies the colour and mask bitmaps of hIcon into an NRGBA image.
func iconToImage(hIcon windows.Handle) (*image.NRGBA, bool) {
	var ii iconInfo
	if r, _, _ := procGetIconInfo.Call(uintptr(hIcon), uintptr(unsafe.Pointer(&ii))); r == 0 {
		return nil, false
	}
	defer procDeleteObject.Call(uintptr(ii.hbmMask)) //nolint:errcheck // best effort release
	if ii.hbmColor == 0 {
		return nil, false
	}
	defer procDeleteObject.Call(uintptr(ii.hbmColor)) //nolint:errcheck // best effort release

	var bm gdiBitmap
	if r, _, _ := procGetObjectW.Call(uintptr(ii.hbmColor), unsafe.Sizeof(bm), uintptr(unsafe.Pointer(&bm))); r == 0 {
		return nil, false
	}
	w, h := int(bm.bmWidth), int(bm.bmHeight)
	if w <= 0 || h <= 0 || w > MaxEntrySide || h > MaxEntrySide {
		return nil, false
	}

	screen, _, _ := procGetDC.Call(0)
	if screen == 0 {
		return nil, false
	}
	defer procReleaseDC.Call(0, screen) //nolint:errcheck // best effort release
	dc, _, _ := procCreateCompatibleDC.Call(screen)
	if dc == 0 {
		return nil, false
	}
	defer procDeleteDC.Call(dc) //nolint:errcheck // best effort release

	color, ok := dibits(dc, ii.hbmColor, w, h)
	if !ok {
		return nil, false
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	hasAlpha := false
	for i := 0; i < w*h; i++ {
		b, g, r, a := color[i*4], color[i*4+1], color[i*4+2], color[i*4+3]
		img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = r, g, b, a
		if a != 0 {
			hasAlpha = true
		}
	}
	if hasAlpha {
		return img, true
	}

	// No alpha channel: derive transparency from the AND mask.
	mask, ok := dibits(dc, ii.hbmMask, w, h)
	for i := 0; i < w*h; i++ {
		img.Pix[i*4+3] = 0xff
		if ok && mask[i*4] != 0 {
			img.Pix[i*4+3] = 0
		}
	}
	return img, true
}

// dibits reads hbm as top-down 32-bit BGRA.
func dibits(dc uintptr, hbm windows.Handle, w, h int) ([]byte, bool) {
	bi := bitmapInfo{header: bitmapInfoHeader{
		biWidth:       int32(w),
		biHeight:      -int32(h),
		biPlanes:      1,
		biBitCount:    32,
		biCompression: biRGB,
	}}
	bi.header.biSize = uint32(unsafe.Sizeof(bi.header))
	buf := make([]byte, w*h*4)
	r, _, _ := procGetDIBits.Call(
		dc,
		uintptr(hbm),
		0,
		uintptr(h),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&bi)),
		dibRGBColors,
	)
	return buf, r != 0
}
