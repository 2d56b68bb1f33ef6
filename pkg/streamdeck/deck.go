package streamdeck

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"sync"

	"github.com/sstallion/go-hid"
	log "github.com/sirupsen/logrus"
)

// KeyEvent is one key transition read from the device.
type KeyEvent struct {
	Key     uint8
	Pressed bool
}

// DeviceInfo describes a connected panel found during enumeration.
type DeviceInfo struct {
	Serial    string
	ProductID uint16
	Rows      int
	Cols      int
	ImageSize image.Point
}

// Deck is a physical panel. The daemon core and tests program against this
// interface; openDeck backs it with USB HID.
type Deck interface {
	// Serial returns the device serial number.
	Serial() string

	// Info returns the device geometry.
	Info() DeviceInfo

	// SetImage displays img on key. The image must match Info().ImageSize.
	SetImage(key uint8, img image.Image) error

	// ClearImage blanks key.
	ClearImage(key uint8) error

	// SetBrightness sets the backlight, 0..100.
	SetBrightness(percent uint8) error

	// ReadKeys blocks reading key reports and invokes cb per transition
	// until the device closes.
	ReadKeys(cb func(KeyEvent)) error

	// Close releases the device.
	Close() error
}

// hidDevice is the slice of the HID API a deck needs; it matches
// *hid.Device and is narrowed for tests.
type hidDevice interface {
	io.Reader
	io.Writer
	io.Closer
	SendFeatureReport([]byte) (int, error)
}

// Enumerate lists connected supported panels.
func Enumerate() ([]DeviceInfo, error) {
	var infos []DeviceInfo
	err := hid.Enumerate(vidElGato, hid.ProductIDAny, func(info *hid.DeviceInfo) error {
		desc, ok := deviceTypes[info.ProductID]
		if !ok {
			return nil
		}
		infos = append(infos, DeviceInfo{
			Serial:    info.SerialNbr,
			ProductID: info.ProductID,
			Rows:      desc.rows,
			Cols:      desc.cols,
			ImageSize: desc.imageSize,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// Open opens the panel with the given serial number.
func Open(serial string) (Deck, error) {
	infos, err := Enumerate()
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.Serial != serial {
			continue
		}
		dev, err := hid.Open(vidElGato, info.ProductID, serial)
		if err != nil {
			return nil, err
		}
		desc := deviceTypes[info.ProductID]
		d := &openDeck{desc: desc, serial: serial, dev: dev}
		if err := d.reset(); err != nil {
			dev.Close()
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("no connected deck with serial %q", serial)
}

// openDeck is the HID-backed Deck.
type openDeck struct {
	desc   deviceType
	serial string

	writeMu sync.Mutex
	dev     hidDevice
}

func (d *openDeck) Serial() string { return d.serial }

func (d *openDeck) Info() DeviceInfo {
	return DeviceInfo{
		Serial:    d.serial,
		ProductID: d.desc.productID,
		Rows:      d.desc.rows,
		Cols:      d.desc.cols,
		ImageSize: d.desc.imageSize,
	}
}

// reset clears the key image streamer so partial writes from a previous
// process cannot corrupt images sent later.
func (d *openDeck) reset() error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	_, err := d.dev.SendFeatureReport(resetReport())
	return err
}

func (d *openDeck) SetImage(key uint8, img image.Image) error {
	if int(key) >= d.desc.rows*d.desc.cols {
		return fmt.Errorf("key %d out of range", key)
	}
	var encoded bytes.Buffer
	if err := jpeg.Encode(&encoded, img, &jpeg.Options{Quality: 95}); err != nil {
		return err
	}
	return d.writeImagePages(key, encoded.Bytes())
}

func (d *openDeck) ClearImage(key uint8) error {
	black := image.NewRGBA(image.Rectangle{Max: d.desc.imageSize})
	return d.SetImage(key, black)
}

// writeImagePages uploads an encoded image in fixed-size report pages. The
// write lock spans the whole upload; interleaved pages from two writers
// would corrupt the device state.
func (d *openDeck) writeImagePages(key uint8, data []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	perPage := d.desc.payloadLen - len(imagePageHeader(key, 0, 0, false))
	page := 0
	for sent := 0; sent < len(data); page++ {
		chunk := len(data) - sent
		if chunk > perPage {
			chunk = perPage
		}
		last := sent+chunk == len(data)

		report := make([]byte, d.desc.payloadLen)
		header := imagePageHeader(key, chunk, page, last)
		copy(report, header)
		copy(report[len(header):], data[sent:sent+chunk])

		if _, err := d.dev.Write(report); err != nil {
			return err
		}
		sent += chunk
	}
	return nil
}

func (d *openDeck) SetBrightness(percent uint8) error {
	if percent > 100 {
		percent = 100
	}
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	_, err := d.dev.SendFeatureReport(brightnessReport(percent))
	return err
}

// ReadKeys reads key state reports and emits one KeyEvent per transition.
// Gen2 reports carry key states starting at byte 4.
func (d *openDeck) ReadKeys(cb func(KeyEvent)) error {
	count := d.desc.rows * d.desc.cols
	buf := make([]byte, 4+count)
	state := make([]bool, count)

	for {
		n, err := d.dev.Read(buf)
		if err != nil {
			return err
		}
		if n < 4 {
			continue
		}
		for i := 0; i < count && 4+i < n; i++ {
			pressed := buf[4+i] != 0
			if pressed == state[i] {
				continue
			}
			state[i] = pressed
			cb(KeyEvent{Key: uint8(i), Pressed: pressed})
		}
	}
}

func (d *openDeck) Close() error {
	if err := d.reset(); err != nil {
		log.Debugf("reset on close failed for %s: %v", d.serial, err)
	}
	return d.dev.Close()
}
