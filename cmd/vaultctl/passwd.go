package main

import (
	"github.com/absfs/vaultfs"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newPasswdCmd())
	rootCmd.AddCommand(newForgetCmd())
}

func newPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <image>",
		Short: "Change the container password",
		Long: `The passwd command re-seals the master key under a new password.
File data is not re-encrypted.

Example:
  vaultctl passwd box.vfs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image := args[0]
			return withVault(image, func(v *vaultfs.VirtualFS) error {
				password, err := readPasswordConfirm()
				if err != nil {
					return err
				}
				defer vaultfs.ClearBytes(password)

				if err := v.ChangeAccessPassword(password); err != nil {
					return err
				}
				if cfg.Keyring {
					if err := savePassword(image, password); err != nil {
						logger.Warn("could not store password in keyring", "err", err)
					}
				}
				printInfo("Password changed\n")
				return nil
			})
		},
	}
}

func newForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <image>",
		Short: "Remove a stored password from the OS keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := forgetPassword(args[0]); err != nil {
				return err
			}
			printInfo("Password removed from keyring\n")
			return nil
		},
	}
}
