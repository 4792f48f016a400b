package main

import (
	"github.com/absfs/vaultfs"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	var name string
	var plain bool
	var initialBlocks int

	cmd := &cobra.Command{
		Use:   "create <image>",
		Short: "Create a new container",
		Long: `The create command formats a new container file. Unless --plain is
given it asks for a password and encrypts the container.

Example:
  vaultctl create box.vfs --name documents
  vaultctl create box.vfs --cipher chacha20 --key-mode argon2id
  VAULTFS_NEW_PASSWORD=secret vaultctl create box.vfs --keyring`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args[0], name, plain, initialBlocks)
		},
	}
	cmd.Flags().StringVar(&name, "name", "vault", "Container name")
	cmd.Flags().BoolVar(&plain, "plain", false, "Create an unencrypted container")
	cmd.Flags().IntVar(&initialBlocks, "initial-blocks", 0, "Blocks to preallocate")
	cmd.Flags().String("cipher", "aes-xts", "Data cipher: aes-xts, aes-xts-256, aes-cbc, aes-cbc-128, chacha20")
	cmd.Flags().String("key-mode", "pbkdf2", "Key derivation: pbkdf2, pbkdf2-sha512, argon2id")
	cmd.Flags().Uint32("iterations", 100000, "PBKDF2 iterations")
	cmd.Flags().Int("block-size", 4096, "Block size in bytes")
	return cmd
}

func runCreate(image, name string, plain bool, initialBlocks int) error {
	opts := &vaultfs.CreateOptions{
		Name:          name,
		BlockSize:     cfg.BlockSize,
		InitialBlocks: initialBlocks,
	}

	if !plain {
		var err error
		if opts.DataCipher, err = parseCipher(cfg.Cipher); err != nil {
			return err
		}
		if opts.KeyCipher, err = parseKeyMode(cfg.KeyMode, cfg.Iterations); err != nil {
			return err
		}
		if opts.Password, err = readPasswordConfirm(); err != nil {
			return err
		}
		defer vaultfs.ClearBytes(opts.Password)
	}

	v, err := newVFS()
	if err != nil {
		return err
	}
	defer v.Release()
	if err := v.Create(image, opts); err != nil {
		return err
	}

	if cfg.Keyring && !plain {
		if err := savePassword(image, opts.Password); err != nil {
			logger.Warn("could not store password in keyring", "err", err)
		}
	}
	printInfo("Created %s (%s)\n", image, name)
	return v.Close()
}
