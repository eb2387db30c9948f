/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package share

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// Share links embed the full state, so they need more capacity than the
// Medium level used for short game URLs.
const qrLevel = qrcode.Low

// QRCode renders link as a PNG of the given size in pixels.
func QRCode(link string, size int) ([]byte, error) {
	png, err := qrcode.Encode(link, qrLevel, size)
	if err != nil {
		return nil, fmt.Errorf("qr generation failed: %w", err)
	}

	return png, nil
}

// Terminal renders link as a QR code made of block characters.
func Terminal(link string) (string, error) {
	q, err := qrcode.New(link, qrLevel)
	if err != nil {
		return "", fmt.Errorf("qr generation failed: %w", err)
	}

	return q.ToSmallString(false), nil
}
