// Package share renders the share surfaces of a saved report.
package share

import (
	"errors"
	"fmt"

	"github.com/skip2/go-qrcode"
)

const DefaultQRSize = 256

type QRCoder struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewQRCoder returns a PNG encoder. level is one of L, M, Q, H; anything else means M.
func NewQRCoder(size int, level string) *QRCoder {
	var rl qrcode.RecoveryLevel
	switch level {
	case "L":
		rl = qrcode.Low
	case "Q":
		rl = qrcode.High
	case "H":
		rl = qrcode.Highest
	default:
		rl = qrcode.Medium
	}

	if size <= 0 {
		size = DefaultQRSize
	}

	return &QRCoder{
		size:  size,
		level: rl,
	}
}

// PNG encodes content, normally an absolute share URL.
func (q *QRCoder) PNG(content string) ([]byte, error) {
	if content == "" {
		return nil, errors.New("QR content is empty")
	}

	code, err := qrcode.New(content, q.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := code.PNG(q.size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PNG: %w", err)
	}
	return png, nil
}
