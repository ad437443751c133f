package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oselz/viewfinder/internal/camera"
	"github.com/oselz/viewfinder/internal/config"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available camera devices",
	Long: `Probe the configured capture backend and list the devices it
can open, one per position and focal class.`,
	Example: `  # List devices in table format (default)
  viewfinder devices

  # List devices in JSON format
  viewfinder devices --format json

  # Probe a specific backend
  viewfinder devices --backend screen`,
	RunE: runDevices,
}

var devicesFormat string

func init() {
	rootCmd.AddCommand(devicesCmd)

	devicesCmd.Flags().StringVarP(&devicesFormat, "format", "f", "table", "output format (table or json)")
}

type deviceInfo struct {
	Name        string `json:"name"`
	Position    string `json:"position"`
	Class       string `json:"class"`
	StillWidth  int    `json:"still_width"`
	StillHeight int    `json:"still_height"`
}

func runDevices(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg := configMgr.Get()
	opener, err := newOpener(cfg.Camera)
	if err != nil {
		return err
	}

	positions := []camera.Position{camera.PositionBack, camera.PositionFront}
	classes := []camera.FocalClass{camera.ClassUltraWide, camera.ClassWide, camera.ClassTelephoto}

	var devices []deviceInfo
	for _, pos := range positions {
		for _, class := range classes {
			dev, err := opener.Open(pos, class)
			if err != nil {
				continue
			}
			p := dev.Profile()
			if p.Class == class {
				devices = append(devices, deviceInfo{
					Name:        p.Name,
					Position:    string(p.Position),
					Class:       string(p.Class),
					StillWidth:  p.StillWidth,
					StillHeight: p.StillHeight,
				})
			}
			dev.Close()
		}
	}

	switch devicesFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(devices)
	case "table":
		return printDevicesTable(opener.Name(), devices)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", devicesFormat)
	}
}

func printDevicesTable(backend string, devices []deviceInfo) error {
	fmt.Printf("Backend: %s\n\n", backend)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "NAME\tPOSITION\tCLASS\tSTILL")
	fmt.Fprintln(w, "----\t--------\t-----\t-----")

	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\n", d.Name, d.Position, d.Class, d.StillWidth, d.StillHeight)
	}

	return nil
}
