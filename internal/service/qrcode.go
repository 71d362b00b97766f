package service

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/rongwang/checkin-server/internal/models"
	qrcode "github.com/skip2/go-qrcode"
)

// Badge image settings
const (
	qrImageSize     = 300
	qrDataURLPrefix = "data:image/png;base64,"
)

// GenerateQRCode renders the registrant's credential as a PNG data URL for
// printing on a badge.
func (s *DefaultService) GenerateQRCode(ctx context.Context, id int64) (*models.QRCodeResponse, error) {
	reg, err := s.repo.GetRegistrationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting registration: %w", err)
	}
	if reg == nil {
		return nil, ErrRegistrationNotFound
	}

	png, err := qrcode.Encode(reg.QRCode, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("error encoding qr code: %w", err)
	}

	return &models.QRCodeResponse{
		Status:         "success",
		RegistrationID: reg.ID,
		Registration:   summarize(reg),
		QRCodeDataURL:  qrDataURLPrefix + base64.StdEncoding.EncodeToString(png),
	}, nil
}
