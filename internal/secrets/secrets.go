// Package secrets defines the deployment-secrets file format shared between
// the off-device design tool (which generates it) and the firmware builder
// (which consumes it to stamp per-decoder keys into a flash image). The
// decoder core itself never reads this file directly; it only ever sees
// the already-derived keys the builder wrote into flash.
package secrets

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/meridiancas/satlink/internal/constants"
)

// Deployment holds the three root secrets established once per broadcast
// deployment.
type Deployment struct {
	FrameKey               [constants.LenAsconKey]byte               `json:"-"`
	BaseChannelSecret      [constants.LenBaseChannelSecret]byte      `json:"-"`
	BaseSubscriptionSecret [constants.LenBaseSubscriptionSecret]byte `json:"-"`
}

// jsonDoc is the on-disk hex-encoded representation of Deployment.
type jsonDoc struct {
	FrameKey               string `json:"frame_key"`
	BaseChannelSecret      string `json:"base_channel_secret"`
	BaseSubscriptionSecret string `json:"base_subscription_secret"`
}

func (d Deployment) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonDoc{
		FrameKey:               hex.EncodeToString(d.FrameKey[:]),
		BaseChannelSecret:      hex.EncodeToString(d.BaseChannelSecret[:]),
		BaseSubscriptionSecret: hex.EncodeToString(d.BaseSubscriptionSecret[:]),
	})
}

func (d *Deployment) UnmarshalJSON(b []byte) error {
	var doc jsonDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("secrets: decode deployment json: %w", err)
	}
	if err := decodeHexInto(d.FrameKey[:], doc.FrameKey, "frame_key"); err != nil {
		return err
	}
	if err := decodeHexInto(d.BaseChannelSecret[:], doc.BaseChannelSecret, "base_channel_secret"); err != nil {
		return err
	}
	if err := decodeHexInto(d.BaseSubscriptionSecret[:], doc.BaseSubscriptionSecret, "base_subscription_secret"); err != nil {
		return err
	}
	return nil
}

func decodeHexInto(dst []byte, s, field string) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("secrets: field %s is not valid hex: %w", field, err)
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("secrets: field %s must decode to %d bytes, got %d", field, len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}

// Load reads and parses a deployment-secrets file.
func Load(path string) (Deployment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Deployment{}, fmt.Errorf("secrets: read %s: %w", path, err)
	}
	var d Deployment
	if err := json.Unmarshal(raw, &d); err != nil {
		return Deployment{}, err
	}
	return d, nil
}

// Save writes a deployment-secrets file with 0600 permissions.
func Save(path string, d Deployment) error {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("secrets: encode deployment json: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("secrets: write %s: %w", path, err)
	}
	return nil
}
