package main

import (
	"github.com/absfs/vaultfs"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <image>",
		Short: "Show container metadata",
		Long: `The info command opens a container and prints its metadata: name,
block size, ciphers, counts and space usage. Key material is never shown.

Example:
  vaultctl info box.vfs
  vaultctl info box.vfs -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(args[0], runInfo)
		},
	}
}

func runInfo(v *vaultfs.VirtualFS) error {
	fields := vaultfs.PublicMetaFields()
	info := make(map[string]any, len(fields))
	for _, f := range fields {
		value, err := v.GetMeta(f)
		if err != nil {
			return err
		}
		info[f.String()] = value
	}

	mode, _ := info[vaultfs.MetaDataMode.String()].(uint32)
	info["data_cipher"] = vaultfs.CipherModeName(mode)
	keyMode, _ := info[vaultfs.MetaKeyMode.String()].(uint32)
	info["key_derivation"] = vaultfs.KeyModeName(keyMode)

	if structured() {
		return printStructured(info)
	}

	printInfo("\nContainer Information:\n")
	printInfo("  Name:        %v\n", info["name"])
	printInfo("  Volume ID:   %v\n", info["volume_id"])
	printInfo("  Version:     %v\n", info["version"])
	printInfo("  Block size:  %v\n", info["block_size"])
	printInfo("  Encrypted:   %v\n", info["is_encrypted"])
	printInfo("  Data cipher: %v\n", info["data_cipher"])
	printInfo("  Key mode:    %v\n", info["key_derivation"])
	printInfo("  Files:       %v\n", info["files_count"])
	printInfo("  Folders:     %v\n", info["dir_count"])
	printInfo("  Used blocks: %v\n", info["used_blocks"])
	printInfo("  Free blocks: %v\n", info["free_blocks"])
	printInfo("  Used bytes:  %v\n", info["used_bytes"])
	return nil
}
