// flashkv manipulates and inspects flash image files holding a kvstore
// formatted range, for development and provisioning workflows.
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/forestrie/go-flashstore/flash"
	"github.com/forestrie/go-flashstore/kvstore"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	rootCmd := &cobra.Command{
		Use:          "flashkv",
		Short:        "Inspect and manipulate kvstore flash images",
		Long:         "flashkv operates on raw flash image files: it formats them for the store, reads and writes records, garbage collects, and dumps region contents.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("image", os.Getenv("FLASHKV_IMAGE"), "Path to the flash image file")
	rootCmd.PersistentFlags().Int("region-size", 1024, "Region (erase unit) size in bytes")

	rootCmd.AddCommand(newFormatCommand(logger))
	rootCmd.AddCommand(newPutCommand(logger))
	rootCmd.AddCommand(newGetCommand())
	rootCmd.AddCommand(newDeleteCommand(logger))
	rootCmd.AddCommand(newGCCommand(logger))
	rootCmd.AddCommand(newDumpCommand(logger))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if lvl := os.Getenv("FLASHKV_LOG_LEVEL"); lvl != "" {
		if parsed, err := zapcore.ParseLevel(lvl); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(parsed)
		}
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	return logger
}

// openStore opens the image named by the persistent flags and builds a
// store over it. The caller closes the returned image.
func openStore(cmd *cobra.Command) (*flash.ImageFile, *kvstore.Store, error) {
	path, _ := cmd.Flags().GetString("image")
	regionSize, _ := cmd.Flags().GetInt("region-size")
	if path == "" {
		return nil, nil, errors.New("an image path is required; use --image or FLASHKV_IMAGE")
	}
	img, err := flash.OpenImage(path, regionSize)
	if err != nil {
		return nil, nil, err
	}
	store, err := kvstore.New(img, img.Geometry())
	if err != nil {
		img.Close()
		return nil, nil, err
	}
	return img, store, nil
}

func newFormatCommand(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "format",
		Short: "Create a flash image and initialize the store on it",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("image")
			regionSize, _ := cmd.Flags().GetInt("region-size")
			flashSize, _ := cmd.Flags().GetInt("flash-size")
			if path == "" {
				return errors.New("an image path is required; use --image or FLASHKV_IMAGE")
			}
			g, err := flash.NewGeometry(regionSize, flashSize)
			if err != nil {
				return err
			}
			img, err := flash.CreateImage(path, g)
			if err != nil {
				return err
			}
			defer img.Close()
			store, err := kvstore.New(img, g)
			if err != nil {
				return err
			}
			outcome, err := store.Init()
			if err != nil {
				return err
			}
			logger.Info("image formatted",
				zap.String("image", path),
				zap.Int("regions", g.NumRegions),
				zap.Int("regionSize", g.RegionSize),
				zap.Stringer("outcome", outcome))
			return nil
		},
	}
	cmd.Flags().Int("flash-size", 0x10000, "Total image size in bytes")
	return cmd
}

// keyValue resolves the --value/--value-hex pair of flags.
func keyValue(cmd *cobra.Command) ([]byte, error) {
	text, _ := cmd.Flags().GetString("value")
	hexText, _ := cmd.Flags().GetString("value-hex")
	if hexText != "" {
		return hex.DecodeString(hexText)
	}
	return []byte(text), nil
}

func newPutCommand(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put",
		Short: "Append a record",
		RunE: func(cmd *cobra.Command, args []string) error {
			img, store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer img.Close()
			key, _ := cmd.Flags().GetString("key")
			value, err := keyValue(cmd)
			if err != nil {
				return err
			}
			outcome, err := store.AppendKey(store.HashKey([]byte(key)), value)
			if err != nil {
				return err
			}
			logger.Info("record appended",
				zap.String("key", key),
				zap.Int("valueBytes", len(value)),
				zap.Stringer("outcome", outcome))
			return nil
		},
	}
	cmd.Flags().String("key", "", "Record key")
	cmd.Flags().String("value", "", "Record value as text")
	cmd.Flags().String("value-hex", "", "Record value as hex (overrides --value)")
	cmd.MarkFlagRequired("key")
	return cmd
}

func newGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Read the record stored under a key",
		RunE: func(cmd *cobra.Command, args []string) error {
			img, store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer img.Close()
			key, _ := cmd.Flags().GetString("key")
			asHex, _ := cmd.Flags().GetBool("hex")
			buf := make([]byte, img.Geometry().RegionSize)
			n, err := store.GetKey(store.HashKey([]byte(key)), buf)
			if err != nil {
				return err
			}
			if asHex {
				fmt.Println(hex.EncodeToString(buf[:n]))
				return nil
			}
			os.Stdout.Write(buf[:n])
			return nil
		},
	}
	cmd.Flags().String("key", "", "Record key")
	cmd.Flags().Bool("hex", false, "Print the value as hex")
	cmd.MarkFlagRequired("key")
	return cmd
}

func newDeleteCommand(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Tombstone the record stored under a key",
		RunE: func(cmd *cobra.Command, args []string) error {
			img, store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer img.Close()
			key, _ := cmd.Flags().GetString("key")
			outcome, err := store.InvalidateKey(store.HashKey([]byte(key)))
			if err != nil {
				return err
			}
			logger.Info("record invalidated", zap.String("key", key), zap.Stringer("outcome", outcome))
			return nil
		},
	}
	cmd.Flags().String("key", "", "Record key")
	cmd.MarkFlagRequired("key")
	return cmd
}

func newGCCommand(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Erase regions containing only tombstoned records",
		RunE: func(cmd *cobra.Command, args []string) error {
			img, store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer img.Close()
			freed, err := store.GarbageCollect()
			if err != nil {
				return err
			}
			logger.Info("garbage collected", zap.Int("bytesFreed", freed))
			return nil
		},
	}
}
