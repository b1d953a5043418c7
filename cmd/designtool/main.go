// Command designtool is the off-device counterpart to the decoder core: it
// generates deployment secrets and encodes the subscription and frame
// messages a broadcast headend would send over the host link. None of this
// runs on the decoder; it produces the artifacts the core only ever
// consumes.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meridiancas/satlink/internal/aead"
	"github.com/meridiancas/satlink/internal/constants"
	"github.com/meridiancas/satlink/internal/kdf"
	"github.com/meridiancas/satlink/internal/secrets"
	"github.com/meridiancas/satlink/internal/wire"
)

func main() {
	root := &cobra.Command{
		Use:   "designtool",
		Short: "Generate deployment secrets and encode subscription/frame messages",
	}
	root.AddCommand(genSecretsCmd(), genSubscriptionCmd(), encodeFrameCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func genSecretsCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "gen-secrets",
		Short: "Generate a fresh deployment-secrets file",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := secrets.Deployment{}
			if err := randomFill(d.FrameKey[:]); err != nil {
				return err
			}
			if err := randomFill(d.BaseChannelSecret[:]); err != nil {
				return err
			}
			if err := randomFill(d.BaseSubscriptionSecret[:]); err != nil {
				return err
			}
			if err := secrets.Save(out, d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote deployment secrets to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "secrets.json", "output path")
	return cmd
}

func genSubscriptionCmd() *cobra.Command {
	var secretsPath, out string
	var channelID uint32
	var start, end uint64
	var decoderID uint32
	cmd := &cobra.Command{
		Use:   "gen-subscription",
		Short: "Encode an encrypted subscription message for one decoder",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := secrets.Load(secretsPath)
			if err != nil {
				return err
			}
			channelSecret := kdf.DeriveChannelSecret(d.BaseChannelSecret, channelID)
			subscriptionKey := kdf.DeriveSubscriptionKey(d.BaseSubscriptionSecret, decoderID)

			stored := wire.StoredSubscription{
				Info:          wire.SubscriptionInfo{ChannelID: channelID, Start: start, End: end},
				ChannelSecret: channelSecret,
			}
			var nonce [constants.LenAsconNonce]byte
			if err := randomFill(nonce[:]); err != nil {
				return err
			}
			encrypted := aead.Encrypt(&subscriptionKey, &nonce, stored.Encode())
			return writeOutput(cmd, out, encrypted)
		},
	}
	cmd.Flags().StringVar(&secretsPath, "secrets", "secrets.json", "deployment secrets file")
	cmd.Flags().StringVar(&out, "out", "", "output path (default: hex to stdout)")
	cmd.Flags().Uint32Var(&channelID, "channel", 1, "channel id")
	cmd.Flags().Uint64Var(&start, "start", 0, "subscription window start timestamp")
	cmd.Flags().Uint64Var(&end, "end", 0, "subscription window end timestamp")
	cmd.Flags().Uint32Var(&decoderID, "decoder-id", 0, "target decoder id")
	return cmd
}

func encodeFrameCmd() *cobra.Command {
	var secretsPath, out, pictureText string
	var channelID uint32
	var timestamp uint64
	cmd := &cobra.Command{
		Use:   "encode-frame",
		Short: "Encode an encrypted broadcast frame carrying one picture",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(pictureText) > constants.MaxLenPicture {
				return fmt.Errorf("picture exceeds %d bytes", constants.MaxLenPicture)
			}
			d, err := secrets.Load(secretsPath)
			if err != nil {
				return err
			}
			channelSecret := kdf.DeriveChannelSecret(d.BaseChannelSecret, channelID)
			pictureKey := kdf.DerivePictureKey(channelSecret, timestamp)

			var picNonce [constants.LenAsconNonce]byte
			if err := randomFill(picNonce[:]); err != nil {
				return err
			}
			encPicture := aead.Encrypt(&pictureKey, &picNonce, []byte(pictureText))

			var frame wire.DecryptedFrame
			frame.ChannelID = channelID
			frame.Timestamp = timestamp
			frame.PictureLength = uint8(len(pictureText))
			copy(frame.EncryptedPicture[:], encPicture)

			var frameNonce [constants.LenAsconNonce]byte
			if err := randomFill(frameNonce[:]); err != nil {
				return err
			}
			encFrame := aead.Encrypt(&d.FrameKey, &frameNonce, frame.Encode())
			return writeOutput(cmd, out, encFrame)
		},
	}
	cmd.Flags().StringVar(&secretsPath, "secrets", "secrets.json", "deployment secrets file")
	cmd.Flags().StringVar(&out, "out", "", "output path (default: hex to stdout)")
	cmd.Flags().Uint32Var(&channelID, "channel", 1, "channel id")
	cmd.Flags().Uint64Var(&timestamp, "timestamp", 0, "frame timestamp")
	cmd.Flags().StringVar(&pictureText, "picture", "", "plaintext picture bytes")
	return cmd
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(data))
		return nil
	}
	return os.WriteFile(path, data, 0o600)
}

func randomFill(b []byte) error {
	_, err := rand.Read(b)
	return err
}
