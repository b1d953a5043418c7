// Package update implements the subscription-update pipeline (C6): decrypt
// an encrypted subscription message with the decoder's subscription key,
// validate its fields, and delegate installation to the flash store.
package update

import (
	"errors"
	"fmt"

	"github.com/meridiancas/satlink/internal/aead"
	"github.com/meridiancas/satlink/internal/constants"
	"github.com/meridiancas/satlink/internal/subscription"
	"github.com/meridiancas/satlink/internal/wire"
	"github.com/meridiancas/satlink/internal/zeroize"
)

// ErrUpdate is the single error value the dispatch layer sees from a failed
// subscription update.
var ErrUpdate = errors.New("update: subscription rejected")

// Pipeline runs C6 against a subscription store.
type Pipeline struct {
	Store           *subscription.Store
	SubscriptionKey [constants.LenAsconKey]byte
}

// Update decrypts, validates and installs an encrypted subscription message.
func (p *Pipeline) Update(encryptedSubscription []byte) error {
	if len(encryptedSubscription) != constants.LenEncryptedSubscription {
		return fmt.Errorf("%w: wrong length", ErrUpdate)
	}

	plain, err := aead.Decrypt(&p.SubscriptionKey, encryptedSubscription)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpdate, err)
	}
	defer zeroize.Bytes(plain)

	stored, err := wire.DecodeStoredSubscription(plain)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpdate, err)
	}
	defer zeroize.Array32(&stored.ChannelSecret)

	if stored.Info.ChannelID == constants.EmergencyChannel {
		return fmt.Errorf("%w: emergency channel is immutable", ErrUpdate)
	}
	if stored.Info.ChannelID > constants.MaxStdChannel {
		return fmt.Errorf("%w: channel id out of range", ErrUpdate)
	}
	if stored.Info.Start > stored.Info.End {
		return fmt.Errorf("%w: invalid window", ErrUpdate)
	}

	if err := p.Store.UpdateSubscription(stored); err != nil {
		return fmt.Errorf("%w: %v", ErrUpdate, err)
	}
	return nil
}
