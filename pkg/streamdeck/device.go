package streamdeck

import "image"

// vidElGato is Elgato's USB vendor id.
const vidElGato = 0x0fd9

// deviceType describes one supported panel model. Only gen2-protocol
// devices are listed; they share the feature-report command set and the
// paged JPEG image upload.
type deviceType struct {
	name      string
	productID uint16
	rows      int
	cols      int
	imageSize image.Point

	// payloadLen is the full HID report length for one image page,
	// header included.
	payloadLen int
}

// Supported product ids.
const (
	pidOriginalV2 = 0x006d
	pidMK2        = 0x0080
	pidXL         = 0x006c
	pidXLV2       = 0x008f
	pidMini       = 0x0063
)

var deviceTypes = map[uint16]deviceType{
	pidOriginalV2: {
		name:      "Stream Deck V2",
		productID: pidOriginalV2,
		rows:      3, cols: 5,
		imageSize:  image.Pt(72, 72),
		payloadLen: 1024,
	},
	pidMK2: {
		name:      "Stream Deck MK.2",
		productID: pidMK2,
		rows:      3, cols: 5,
		imageSize:  image.Pt(72, 72),
		payloadLen: 1024,
	},
	pidXL: {
		name:      "Stream Deck XL",
		productID: pidXL,
		rows:      4, cols: 8,
		imageSize:  image.Pt(96, 96),
		payloadLen: 1024,
	},
	pidXLV2: {
		name:      "Stream Deck XL V2",
		productID: pidXLV2,
		rows:      4, cols: 8,
		imageSize:  image.Pt(96, 96),
		payloadLen: 1024,
	},
	pidMini: {
		name:      "Stream Deck Mini",
		productID: pidMini,
		rows:      2, cols: 3,
		imageSize:  image.Pt(80, 80),
		payloadLen: 1024,
	},
}

// imagePageHeader builds the gen2 image page header: report id, the image
// command, the key, a last-page flag, the page's payload length and the
// page number.
func imagePageHeader(key uint8, payloadLen int, page int, last bool) []byte {
	lastFlag := byte(0)
	if last {
		lastFlag = 1
	}
	return []byte{
		0x02, 0x07, key, lastFlag,
		byte(payloadLen), byte(payloadLen >> 8),
		byte(page), byte(page >> 8),
	}
}

// brightnessReport builds the gen2 brightness feature report.
func brightnessReport(percent uint8) []byte {
	buf := make([]byte, 32)
	buf[0] = 0x03
	buf[1] = 0x08
	buf[2] = percent
	return buf
}

// resetReport builds the gen2 display reset feature report.
func resetReport() []byte {
	buf := make([]byte, 32)
	buf[0] = 0x03
	buf[1] = 0x02
	return buf
}
