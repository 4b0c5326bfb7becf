// xfsro reads files, directories, extended attributes, and symlinks out of
// a read-only XFS image without mounting it, exercising the same facade a
// kernel-bridge adapter would drive.
//
// Usage:
//
//	xfsro --image disk.img ls [-l] [-a] [path]
//	xfsro --image disk.img cat <path>
//	xfsro --image disk.img stat <path>
//	xfsro --image disk.img getfattr [-n name] <path>
//	xfsro --image disk.img info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lvdlvd/xfsro/cmd"
	"github.com/lvdlvd/xfsro/internal/xfs/device"
	"github.com/lvdlvd/xfsro/internal/xfs/fsys"
	"github.com/lvdlvd/xfsro/internal/xfs/superblock"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "xfsro: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "xfsro",
		Short:         "Read files out of a read-only XFS image",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("image", "", "path to the XFS image or block device")
	root.PersistentFlags().Int("cache-capacity", fsys.DefaultMountOptions().CacheCapacity, "metadata cache entries per cache")
	root.PersistentFlags().String("verify-checksums", "off", "v5 CRC verification: off, on, or strict")
	root.PersistentFlags().Bool("default-permissions", false, "report default-permissions in statfs")
	root.PersistentFlags().Uint32("uid-override", 0, "override every inode's reported uid (0 disables)")
	root.PersistentFlags().Uint32("gid-override", 0, "override every inode's reported gid (0 disables)")
	root.MarkPersistentFlagRequired("image")

	viper.BindPFlag("image", root.PersistentFlags().Lookup("image"))
	viper.BindPFlag("cache_capacity", root.PersistentFlags().Lookup("cache-capacity"))
	viper.BindPFlag("verify_checksums", root.PersistentFlags().Lookup("verify-checksums"))
	viper.BindPFlag("default_permissions", root.PersistentFlags().Lookup("default-permissions"))
	viper.BindPFlag("uid_override", root.PersistentFlags().Lookup("uid-override"))
	viper.BindPFlag("gid_override", root.PersistentFlags().Lookup("gid-override"))
	viper.SetEnvPrefix("XFSRO")
	viper.AutomaticEnv()

	root.AddCommand(newLsCmd(), newCatCmd(), newStatCmd(), newGetfattrCmd(), newInfoCmd(), newMountCmd())
	return root
}

func mountOptionsFromViper() (fsys.MountOptions, error) {
	opts := fsys.DefaultMountOptions()
	opts.CacheCapacity = viper.GetInt("cache_capacity")
	opts.DefaultPermissions = viper.GetBool("default_permissions")

	switch v := viper.GetString("verify_checksums"); v {
	case "off", "":
		opts.VerifyChecksums = superblock.VerifyOff
	case "on":
		opts.VerifyChecksums = superblock.VerifyOn
	case "strict":
		opts.VerifyChecksums = superblock.VerifyStrict
	default:
		return opts, fmt.Errorf("invalid verify-checksums value %q (want off, on, or strict)", v)
	}

	if uid := viper.GetUint32("uid_override"); uid != 0 {
		opts.UIDOverride = &uid
	}
	if gid := viper.GetUint32("gid_override"); gid != 0 {
		opts.GIDOverride = &gid
	}
	return opts, nil
}

// openVolume opens the image named by the --image flag and mounts it.
func openVolume() (*fsys.Volume, func(), error) {
	imagePath := viper.GetString("image")
	if imagePath == "" {
		return nil, nil, fmt.Errorf("--image is required")
	}
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening image: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat image: %w", err)
	}

	opts, err := mountOptionsFromViper()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	log, _ := zap.NewProduction()
	dev := device.New(f, info.Size(), 512)
	v, err := fsys.Mount(dev, opts, log)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("mounting image: %w", err)
	}
	return v, func() { v.Unmount(); f.Close() }, nil
}

func newLsCmd() *cobra.Command {
	var opts cmd.LsOptions
	c := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a directory's contents",
		RunE: func(c *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			v, closeFn, err := openVolume()
			if err != nil {
				return err
			}
			defer closeFn()
			return cmd.Ls(v, path, os.Stdout, opts)
		},
	}
	c.Flags().BoolVarP(&opts.Long, "long", "l", false, "use long listing format")
	c.Flags().BoolVarP(&opts.All, "all", "a", false, "show dotfiles")
	return c
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a file's contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			v, closeFn, err := openVolume()
			if err != nil {
				return err
			}
			defer closeFn()
			return cmd.Cat(v, args[0], os.Stdout)
		},
	}
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show detailed metadata for a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			v, closeFn, err := openVolume()
			if err != nil {
				return err
			}
			defer closeFn()
			return cmd.Stat(v, args[0], os.Stdout)
		},
	}
}

func newGetfattrCmd() *cobra.Command {
	var name string
	c := &cobra.Command{
		Use:   "getfattr <path>",
		Short: "List or read a path's extended attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			v, closeFn, err := openVolume()
			if err != nil {
				return err
			}
			defer closeFn()
			return cmd.Getfattr(v, args[0], name, os.Stdout)
		},
	}
	c.Flags().StringVarP(&name, "name", "n", "", "attribute name to read; lists all when omitted")
	return c
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show superblock-derived filesystem geometry",
		RunE: func(c *cobra.Command, args []string) error {
			v, closeFn, err := openVolume()
			if err != nil {
				return err
			}
			defer closeFn()
			return cmd.Info(v, os.Stdout)
		},
	}
}

// newMountCmd completes the CLI's command surface but declines to run:
// wiring a FUSE loop over the facade is the kernel-bridge adapter's job,
// out of scope here (see SPEC_FULL.md's DOMAIN STACK).
func newMountCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "mount <mountpoint>",
		Short:  "Mount the image (not implemented: outside this module's scope)",
		Args:   cobra.ExactArgs(1),
		Hidden: true,
		RunE: func(c *cobra.Command, args []string) error {
			return fmt.Errorf("mount: the kernel-bridge adapter is an external collaborator; this module only exposes the decode facade")
		},
	}
}
