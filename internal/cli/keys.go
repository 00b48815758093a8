package cli

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/roach88/timelock/internal/ir"
)

// Keypair is an ed25519 identity loaded from a keypair file.
// The file holds the 64-byte private key in base58.
type Keypair struct {
	Public  ir.Pubkey
	private ed25519.PrivateKey
}

// Sign signs msg.
func (k Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.private, msg)
}

// GenerateKeypair creates a random keypair.
func GenerateKeypair() (Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, err
	}
	var pk ir.Pubkey
	copy(pk[:], pub)
	return Keypair{Public: pk, private: priv}, nil
}

// LoadKeypair reads a keypair file.
func LoadKeypair(path string) (Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Keypair{}, fmt.Errorf("read keypair: %w", err)
	}
	raw, err := base58.Decode(strings.TrimSpace(string(data)))
	if err != nil {
		return Keypair{}, fmt.Errorf("keypair %s: %w", path, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return Keypair{}, fmt.Errorf("keypair %s: want %d bytes, got %d", path, ed25519.PrivateKeySize, len(raw))
	}
	priv := ed25519.PrivateKey(raw)
	var pk ir.Pubkey
	copy(pk[:], priv.Public().(ed25519.PublicKey))
	if !pk.Equal(ir.Pubkey(raw[32:])) {
		return Keypair{}, fmt.Errorf("keypair %s: public half does not match the seed", path)
	}
	return Keypair{Public: pk, private: priv}, nil
}

// Save writes the keypair to path with owner-only permissions.
// An existing file is kept unless overwrite is set.
func (k Keypair) Save(path string, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f, base58.Encode(k.private)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	Force bool
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keygen <file>",
		Short: "Create a keypair file",
		Long: `Create a random ed25519 keypair and write it to file.

Examples:
  timelock keygen alice.key
  timelock keygen alice.key --force`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := GenerateKeypair()
			if err != nil {
				return err
			}
			if err := kp.Save(args[0], opts.Force); err != nil {
				return WrapExitError(ExitCommandError, "failed to write keypair", err)
			}
			return opts.formatter(cmd).Success(ir.IRObject{
				"file":    ir.IRString(args[0]),
				"address": ir.IRString(kp.Public.String()),
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing file")
	return cmd
}

// resolveAddress accepts either a base58 address or a keypair file.
func resolveAddress(s string) (ir.Pubkey, error) {
	if pk, err := ir.ParsePubkey(s); err == nil {
		return pk, nil
	}
	kp, err := LoadKeypair(s)
	if err != nil {
		return ir.Pubkey{}, fmt.Errorf("%q is neither an address nor a keypair file: %w", s, err)
	}
	return kp.Public, nil
}
