package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

// BoardSettings holds the remote board credentials and the pipeline windows.
// Loaded once at startup; a missing required value is fatal.
type BoardSettings struct {
	APIURL               string `validate:"required,url"`
	APIKey               string `validate:"required"`
	BoardId              string `validate:"required"`
	SyncLookbackDays     int    `validate:"gt=0"`
	TransferLookbackDays int    `validate:"gt=0"`
}

const defaultLookbackDays = 180

var boardSettings *BoardSettings

func GetBoardSettings() *BoardSettings {
	return boardSettings
}

// LoadBoardSettings reads and validates the board configuration from env.
// Call from main() before serving traffic.
func LoadBoardSettings() error {
	s := &BoardSettings{
		APIURL:               strings.TrimSpace(os.Getenv("BOARD_API_URL")),
		APIKey:               strings.TrimSpace(os.Getenv("BOARD_API_KEY")),
		BoardId:              strings.TrimSpace(os.Getenv("BOARD_ID")),
		SyncLookbackDays:     intFromEnv("SYNC_LOOKBACK_DAYS", defaultLookbackDays),
		TransferLookbackDays: intFromEnv("TRANSFER_LOOKBACK_DAYS", defaultLookbackDays),
	}
	if s.APIURL == "" {
		s.APIURL = "https://api.monday.com/v2"
	}

	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("board settings: %w", err)
	}
	boardSettings = s
	return nil
}
