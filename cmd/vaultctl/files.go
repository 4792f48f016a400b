package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/absfs/vaultfs"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newMkdirCmd())
	rootCmd.AddCommand(newPutCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newMvCmd())
	rootCmd.AddCommand(newRmCmd())
	rootCmd.AddCommand(newStatCmd())
	rootCmd.AddCommand(newAttrCmd())
}

// entry is the structured form of one listed object
type entry struct {
	Name    string    `json:"name" yaml:"name"`
	Folder  bool      `json:"folder" yaml:"folder"`
	Size    int64     `json:"size" yaml:"size"`
	Flags   string    `json:"flags" yaml:"flags"`
	Creator uint64    `json:"creator,omitempty" yaml:"creator,omitempty"`
	Written time.Time `json:"written" yaml:"written"`
}

func newEntry(name string, a vaultfs.Attributes) entry {
	return entry{
		Name:    name,
		Folder:  a.IsDir(),
		Size:    a.Size,
		Flags:   formatFlags(a.Flags),
		Creator: a.CreatorID,
		Written: a.Written,
	}
}

var flagLetters = []struct {
	flag   uint32
	letter byte
}{
	{vaultfs.AttrDirectory, 'd'},
	{vaultfs.AttrReadOnly, 'r'},
	{vaultfs.AttrHidden, 'h'},
	{vaultfs.AttrSystem, 's'},
	{vaultfs.AttrArchive, 'a'},
}

// formatFlags renders attribute flags as "drhsa" with dashes for unset bits
func formatFlags(flags uint32) string {
	var b strings.Builder
	for _, f := range flagLetters {
		if flags&f.flag != 0 {
			b.WriteByte(f.letter)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// parseFlagChanges applies "+rh" or "-a" style changes to flags
func parseFlagChanges(flags uint32, changes []string) (uint32, error) {
	for _, c := range changes {
		if len(c) < 2 || (c[0] != '+' && c[0] != '-') {
			return 0, fmt.Errorf("invalid attribute change %q", c)
		}
		for i := 1; i < len(c); i++ {
			var bit uint32
			for _, f := range flagLetters {
				if f.letter == c[i] && f.flag != vaultfs.AttrDirectory {
					bit = f.flag
				}
			}
			if bit == 0 {
				return 0, fmt.Errorf("unknown attribute %q", c[i])
			}
			if c[0] == '+' {
				flags |= bit
			} else {
				flags &^= bit
			}
		}
	}
	return flags, nil
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <image> [folder]",
		Short: "List a folder",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "/"
			if len(args) == 2 {
				dir = args[1]
			}
			return withVault(args[0], func(v *vaultfs.VirtualFS) error {
				list, err := v.FolderList(dir)
				if err != nil {
					return err
				}
				entries := make([]entry, len(list))
				for i, e := range list {
					entries[i] = newEntry(e.Name, e.Attributes)
				}
				if structured() {
					return printStructured(entries)
				}
				for _, e := range entries {
					name := e.Name
					if e.Folder {
						name += "/"
					}
					printInfo("%s %10d %s %s\n", e.Flags, e.Size, e.Written.Format(time.DateTime), name)
				}
				return nil
			})
		},
	}
}

func newMkdirCmd() *cobra.Command {
	var parents bool
	cmd := &cobra.Command{
		Use:   "mkdir <image> <folder>...",
		Short: "Create folders",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(args[0], func(v *vaultfs.VirtualFS) error {
				for _, dir := range args[1:] {
					if err := mkdir(v, dir, parents); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "Create missing parents; existing folders are not an error")
	return cmd
}

func mkdir(v *vaultfs.VirtualFS, dir string, parents bool) error {
	if !parents {
		return v.FolderCreate(dir, 0, 0)
	}
	p := ""
	for _, name := range strings.Split(strings.Trim(dir, "/"), "/") {
		p += "/" + name
		err := v.FolderCreate(p, 0, 0)
		if err != nil && vaultfs.StatusOf(err) != vaultfs.StatusDuplicate {
			return err
		}
	}
	return nil
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <image> <local-file> [path]",
		Short: "Copy a local file into the container",
		Long: `The put command copies a local file into the container, replacing
any file at the target path. The target defaults to the local file name in
the root folder. A local file of "-" reads standard input.

Example:
  vaultctl put box.vfs report.pdf /docs/report.pdf
  tar c src | vaultctl put box.vfs - /src.tar`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := args[1]
			target := "/" + path.Base(local)
			if len(args) == 3 {
				target = args[2]
			}

			var src io.Reader = os.Stdin
			if local != "-" {
				f, err := os.Open(local)
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}

			return withVault(args[0], func(v *vaultfs.VirtualFS) error {
				f, err := v.OpenFile(target, vaultfs.AccessWrite, vaultfs.ShareNone, vaultfs.CreateAlways)
				if err != nil {
					return err
				}
				n, err := io.Copy(f, src)
				if err != nil {
					f.Close()
					return err
				}
				logger.Debug("copied into container", "target", target, "bytes", n)
				return f.Close()
			})
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <image> <path> [local-file]",
		Short: "Copy a file out of the container",
		Long: `The get command copies a file out of the container. Without a local
file name the content is written to standard output.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(args[0], func(v *vaultfs.VirtualFS) error {
				f, err := v.OpenFile(args[1], vaultfs.AccessRead, vaultfs.ShareRead, vaultfs.OpenExisting)
				if err != nil {
					return err
				}
				defer f.Close()

				var dst io.Writer = os.Stdout
				if len(args) == 3 {
					out, err := os.Create(args[2])
					if err != nil {
						return err
					}
					defer out.Close()
					dst = out
				}
				_, err = io.Copy(dst, f)
				return err
			})
		},
	}
}

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <image> <from> <to>",
		Short: "Move or rename a file or folder",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(args[0], func(v *vaultfs.VirtualFS) error {
				return v.Move(args[1], args[2])
			})
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <image> <path>...",
		Short: "Delete files or empty folders",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(args[0], func(v *vaultfs.VirtualFS) error {
				for _, p := range args[1:] {
					if err := v.Delete(p); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <image> <path>",
		Short: "Show the attributes of a file or folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(args[0], func(v *vaultfs.VirtualFS) error {
				a, err := v.GetAttributes(args[1])
				if err != nil {
					return err
				}
				e := newEntry(path.Base(args[1]), a)
				if structured() {
					return printStructured(e)
				}
				printInfo("  Path:     %s\n", args[1])
				printInfo("  Kind:     %s\n", map[bool]string{true: "folder", false: "file"}[e.Folder])
				printInfo("  Size:     %d\n", e.Size)
				printInfo("  Flags:    %s\n", e.Flags)
				printInfo("  Creator:  %d\n", e.Creator)
				printInfo("  Created:  %s\n", a.Created.Format(time.RFC3339))
				printInfo("  Accessed: %s\n", a.Accessed.Format(time.RFC3339))
				printInfo("  Written:  %s\n", a.Written.Format(time.RFC3339))
				return nil
			})
		},
	}
}

func newAttrCmd() *cobra.Command {
	var touch bool
	cmd := &cobra.Command{
		Use:   "attr <image> <path> [+rhsa|-rhsa]...",
		Short: "Change attribute flags",
		Long: `The attr command sets (+) or clears (-) the read-only (r), hidden (h),
system (s) and archive (a) flags. --touch sets the write time to now.

Example:
  vaultctl attr box.vfs /docs/report.pdf +r -a
  vaultctl attr box.vfs /docs --touch`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(args[0], func(v *vaultfs.VirtualFS) error {
				a, err := v.GetAttributes(args[1])
				if err != nil {
					return err
				}
				var mask vaultfs.AttrMask
				if len(args) > 2 {
					if a.Flags, err = parseFlagChanges(a.Flags, args[2:]); err != nil {
						return err
					}
					mask |= vaultfs.SetFlags
				}
				if touch {
					a.Written = time.Now()
					mask |= vaultfs.SetWritten
				}
				if mask == 0 {
					return fmt.Errorf("nothing to change")
				}
				return v.SetAttributes(args[1], a, mask)
			})
		},
	}
	cmd.Flags().BoolVar(&touch, "touch", false, "Set the write time to now")
	return cmd
}
