package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fold-ecosystemics/espstream/internal/client"
	"github.com/fold-ecosystemics/espstream/internal/config"
	"github.com/fold-ecosystemics/espstream/internal/discover"
	"github.com/fold-ecosystemics/espstream/internal/fetch"
	"github.com/fold-ecosystemics/espstream/internal/output"
	"github.com/fold-ecosystemics/espstream/internal/stream"
	"github.com/fold-ecosystemics/espstream/internal/utils"
)

var (
	configPath       string
	caPath           string
	certPath         string
	keyPath          string
	downloadDir      string
	discoveryTimeout time.Duration
	deviceID         string
	fromName         string
	toName           string
	debug            bool
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "espstream",
	Short:   "espstream downloads files from ESP devices over authenticated HTTPS",
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		if configPath != "" {
			if err := applyConfig(cmd, configPath); err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
		}
		if downloadDir == "" {
			output.PrintError("No download directory provided")
			os.Exit(1)
		}
		ctx := cmd.Context()
		device, err := selectDevice(ctx)
		if err != nil {
			output.PrintError(err.Error())
			os.Exit(1)
		}
		output.PrintInfo(fmt.Sprintf("Connecting to %s...", device.BaseURL()))
		session, err := client.NewSession(client.Config{
			BaseURL:  device.BaseURL(),
			CAPath:   caPath,
			CertPath: certPath,
			KeyPath:  keyPath,
		})
		if err != nil {
			output.PrintError(err.Error())
			os.Exit(1)
		}
		defer session.Close()
		opts := fetch.Options{DownloadDir: downloadDir, From: fromName, To: toName}
		if err := fetch.Run(ctx, session, opts); err != nil {
			output.PrintError(describe(err))
			os.Exit(1)
		}
		output.PrintSuccess("Download complete")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file; entries with the same key as a flag act as its default")
	rootCmd.Flags().StringVar(&caPath, "ca-path", defaultCertPath("ca.crt"), "Path to CA certificate chain")
	rootCmd.Flags().StringVar(&certPath, "cert-path", defaultCertPath("client.crt"), "Path to client certificate")
	rootCmd.Flags().StringVar(&keyPath, "key-path", defaultCertPath("client.key"), "Path to client private key")
	rootCmd.Flags().StringVarP(&downloadDir, "download-dir", "d", "", "Directory in which to store downloaded files")
	rootCmd.Flags().DurationVarP(&discoveryTimeout, "discovery-timeout", "t", 3*time.Second, "Timeout for device discovery (eg. 3s, 1m)")
	rootCmd.Flags().StringVar(&deviceID, "device", "", "Device ID to connect to (skips the selection prompt)")
	rootCmd.Flags().StringVar(&fromName, "from", "", "Range start for query, passed to the device untouched")
	rootCmd.Flags().StringVar(&toName, "to", "", "Range end for query, passed to the device untouched")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

// applyConfig fills flags the user left unset from the config file.
func applyConfig(cmd *cobra.Command, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	apply := func(flag string, target *string, value string) {
		if !flags.Changed(flag) && value != "" {
			*target = value
		}
	}
	apply("ca-path", &caPath, cfg.CAPath)
	apply("cert-path", &certPath, cfg.CertPath)
	apply("key-path", &keyPath, cfg.KeyPath)
	apply("download-dir", &downloadDir, cfg.DownloadDir)
	apply("device", &deviceID, cfg.Device)
	apply("from", &fromName, cfg.From)
	apply("to", &toName, cfg.To)
	if !flags.Changed("discovery-timeout") {
		if d, err := cfg.Timeout(); err == nil && d > 0 {
			discoveryTimeout = d
		}
	}
	return nil
}

func defaultCertPath(name string) string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join("certs", name)
	}
	return filepath.Join(filepath.Dir(exe), "certs", name)
}

func selectDevice(ctx context.Context) (discover.Device, error) {
	output.PrintInfo("Discovering devices...")
	devices, err := discover.MDNS{}.Discover(ctx, discoveryTimeout)
	if err != nil {
		return discover.Device{}, err
	}
	if len(devices) == 0 {
		return discover.Device{}, errors.New("no devices found")
	}
	if deviceID != "" {
		for _, d := range devices {
			if d.ID == deviceID {
				return d, nil
			}
		}
		return discover.Device{}, fmt.Errorf("device %s did not advertise within the discovery window", deviceID)
	}
	output.PrintDetail("Available devices:")
	for i, d := range devices {
		output.PrintDetail(fmt.Sprintf("%d. %s", i+1, d.ID))
	}
	return promptDevice(devices)
}

func promptDevice(devices []discover.Device) (discover.Device, error) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("Select device (number): ")
	for scanner.Scan() {
		choice, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err == nil && choice >= 1 && choice <= len(devices) {
			return devices[choice-1], nil
		}
		output.PrintWarning("Invalid selection. Please try again.")
		fmt.Print("Select device (number): ")
	}
	return discover.Device{}, errors.New("no device selected")
}

// describe maps the download error taxonomy to user-facing messages.
func describe(err error) string {
	switch {
	case errors.Is(err, stream.ErrConfiguration):
		return fmt.Sprintf("Server response missing required metadata: %v", err)
	case errors.Is(err, stream.ErrProtocol):
		return fmt.Sprintf("Malformed or truncated stream: %v", err)
	case errors.Is(err, stream.ErrTransport):
		return fmt.Sprintf("Connection failed mid-download: %v", err)
	default:
		return fmt.Sprintf("Download failed: %v", err)
	}
}
