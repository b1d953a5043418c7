// Command firmwarebuilder stamps a per-decoder flash image with derived keys
// and the permanent emergency-channel subscription, and records the issuance
// in a local provisioning ledger. This is the off-device tooling the core
// treats as an external collaborator (spec §1): it never runs on the target.
package main

import (
	"bufio"
	cryptorand "crypto/rand"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/meridiancas/satlink/internal/constants"
	"github.com/meridiancas/satlink/internal/flash"
	"github.com/meridiancas/satlink/internal/kdf"
	"github.com/meridiancas/satlink/internal/layout"
	"github.com/meridiancas/satlink/internal/ledger"
	"github.com/meridiancas/satlink/internal/secrets"
	"github.com/meridiancas/satlink/internal/subscription"
	"github.com/meridiancas/satlink/internal/wire"
)

func main() {
	root := &cobra.Command{
		Use:   "firmwarebuilder",
		Short: "Provision decoder flash images from deployment secrets",
	}
	root.AddCommand(provisionCmd(), inspectCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func provisionCmd() *cobra.Command {
	var secretsPath, flashOut, ledgerPath string
	var decoderID uint32
	var emergencyStart, emergencyEnd uint64
	var skipConfirm bool

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Stamp a fresh flash image for one decoder",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := secrets.Load(secretsPath)
			if err != nil {
				return err
			}

			if !skipConfirm {
				if err := confirmIrreversible(cmd, flashOut); err != nil {
					return err
				}
			}

			subscriptionKey := kdf.DeriveSubscriptionKey(d.BaseSubscriptionSecret, decoderID)
			emergencySecret := kdf.DeriveChannelSecret(d.BaseChannelSecret, constants.EmergencyChannel)

			var rngSeed [constants.LenRNGSeed]byte
			if _, err := cryptorand.Read(rngSeed[:]); err != nil {
				return fmt.Errorf("generate rng seed: %w", err)
			}

			dev, err := flash.OpenFile(flashOut, layout.NumPages, layout.FlashPageSize)
			if err != nil {
				return err
			}
			defer dev.Close()

			keys := layout.DeviceKeys{
				FrameKey:        d.FrameKey,
				SubscriptionKey: subscriptionKey,
				RNGSeed:         rngSeed,
			}
			if err := layout.WriteDeviceKeys(dev, keys); err != nil {
				return err
			}

			store := subscription.New(dev, layout.SlotTableBase, layout.NumSlots)
			emergency := wire.StoredSubscription{
				Info: wire.SubscriptionInfo{
					ChannelID: constants.EmergencyChannel,
					Start:     emergencyStart,
					End:       emergencyEnd,
				},
				ChannelSecret: emergencySecret,
			}
			if err := store.WriteEmergencySlot(emergency); err != nil {
				return err
			}

			led, err := ledger.Open(ledgerPath)
			if err != nil {
				return err
			}
			if err := led.Record(ledger.Record{
				DecoderID:      decoderID,
				IssuedAt:       time.Now(),
				EmergencyStart: emergencyStart,
				EmergencyEnd:   emergencyEnd,
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "provisioned decoder %d at %s\n", decoderID, flashOut)
			return nil
		},
	}
	cmd.Flags().StringVar(&secretsPath, "secrets", "secrets.json", "deployment secrets file")
	cmd.Flags().StringVar(&flashOut, "out", "", "output flash image path")
	cmd.Flags().StringVar(&ledgerPath, "ledger", "provisioning.db", "provisioning ledger sqlite path")
	cmd.Flags().Uint32Var(&decoderID, "decoder-id", 0, "unique decoder id")
	cmd.Flags().Uint64Var(&emergencyStart, "emergency-start", 0, "emergency subscription window start")
	cmd.Flags().Uint64Var(&emergencyEnd, "emergency-end", ^uint64(0), "emergency subscription window end")
	cmd.Flags().BoolVar(&skipConfirm, "yes", false, "skip the interactive confirmation prompt")
	cmd.MarkFlagRequired("out")
	return cmd
}

func inspectCmd() *cobra.Command {
	var ledgerPath string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List provisioning ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			led, err := ledger.Open(ledgerPath)
			if err != nil {
				return err
			}
			records, err := led.All()
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "decoder=%d issued=%s emergency=[%d,%d]\n",
					r.DecoderID, r.IssuedAt.Format(time.RFC3339), r.EmergencyStart, r.EmergencyEnd)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ledgerPath, "ledger", "provisioning.db", "provisioning ledger sqlite path")
	return cmd
}

// confirmIrreversible prompts for a typed "yes" at a hidden terminal prompt
// before an irreversible flash write.
func confirmIrreversible(cmd *cobra.Command, target string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "About to provision flash image %q. Type the word \"yes\" to continue: ", target)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read confirmation: %w", err)
		}
		if trimmed := trimNewline(line); trimmed != "yes" {
			return fmt.Errorf("provisioning aborted: confirmation not given")
		}
		return nil
	}

	raw, err := term.ReadPassword(fd)
	if err != nil {
		return fmt.Errorf("read confirmation: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	if string(raw) != "yes" {
		return fmt.Errorf("provisioning aborted: confirmation not given")
	}
	return nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
