package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forestrie/go-flashstore/kvstore"
)

// dumpRecord is the per-record report emitted by the dump command.
type dumpRecord struct {
	Region     int    `json:"region" cbor:"1,keyasint"`
	Offset     int    `json:"offset" cbor:"2,keyasint"`
	Length     int    `json:"length" cbor:"3,keyasint"`
	Version    uint8  `json:"version" cbor:"4,keyasint"`
	Live       bool   `json:"live" cbor:"5,keyasint"`
	KeyHash    string `json:"keyHash" cbor:"6,keyasint"`
	ChecksumOK bool   `json:"checksumOk" cbor:"7,keyasint"`
}

func newDumpCommand(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "List every record in the image, region by region",
		RunE: func(cmd *cobra.Command, args []string) error {
			img, store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer img.Close()
			format, _ := cmd.Flags().GetString("format")

			g := img.Geometry()
			buf := make([]byte, g.RegionSize)
			var records []dumpRecord
			for region := 0; region < g.NumRegions; region++ {
				if err := img.ReadRegion(region, buf); err != nil {
					return err
				}
				infos, err := store.ScanRegion(buf)
				if err != nil && !errors.Is(err, kvstore.ErrCorruptData) {
					return err
				}
				if err != nil {
					logger.Warn("region scan stopped on corrupt data", zap.Int("region", region))
				}
				for _, info := range infos {
					records = append(records, dumpRecord{
						Region:     region,
						Offset:     info.Offset,
						Length:     info.Length,
						Version:    info.Version,
						Live:       info.Live,
						KeyHash:    fmt.Sprintf("%016x", info.KeyHash),
						ChecksumOK: info.ChecksumOK,
					})
				}
			}

			switch format {
			case "table":
				fmt.Printf("%-6s %-7s %-7s %-7s %-5s %-17s %s\n",
					"region", "offset", "length", "version", "live", "keyhash", "crc")
				for _, r := range records {
					crc := "ok"
					if !r.ChecksumOK {
						crc = "BAD"
					}
					fmt.Printf("%-6d %-7d %-7d %-7d %-5v %-17s %s\n",
						r.Region, r.Offset, r.Length, r.Version, r.Live, r.KeyHash, crc)
				}
				return nil
			case "json":
				out, err := json.MarshalIndent(records, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			case "cbor":
				out, err := cbor.Marshal(records)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(out)
				return err
			default:
				return fmt.Errorf("invalid --format %q; use table|json|cbor", format)
			}
		},
	}
	cmd.Flags().String("format", "table", "Output format: table|json|cbor")
	return cmd
}
