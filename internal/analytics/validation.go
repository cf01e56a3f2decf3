package analytics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
)

const (
	maxIDLength      = 200
	maxPageURLLength = 2048
	maxSourceLength  = 4096
)

// ValidateClickPayload checks a payload read back from the stream.
func ValidateClickPayload(p ClickPayload) error {
	if p.ClickID == "" {
		return errors.New("click_id is required")
	}
	if !strings.HasPrefix(p.ClickID, model.ClickIDPrefix) {
		return fmt.Errorf("click_id must start with %s", model.ClickIDPrefix)
	}
	if len(p.ClickID) > maxIDLength {
		return errors.New("click_id too long")
	}
	if p.PartnerID == "" {
		return errors.New("partner_id is required")
	}
	if len(p.PartnerID) > maxIDLength {
		return errors.New("partner_id too long")
	}
	if p.Timestamp <= 0 {
		return errors.New("timestamp must be set")
	}
	if len(p.Source) > maxSourceLength {
		return errors.New("source too long")
	}
	if len(p.PageURL) > maxPageURLLength {
		return errors.New("page_url too long")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
