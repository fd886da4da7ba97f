package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tombabolewski/vidaa-control/internal/credentials"
	"github.com/tombabolewski/vidaa-control/internal/discovery"
	"github.com/tombabolewski/vidaa-control/internal/engine"
	"github.com/tombabolewski/vidaa-control/internal/protocol"
)

// Command flags
var (
	deviceIP    string
	deviceMAC   string
	devicePort  int
	scanTimeout int
	cmdTimeout  int
)

func init() {
	// Common flags for device commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&deviceIP, "device", "", "TV IP address (skips discovery)")
	rootCmd.PersistentFlags().StringVar(&deviceMAC, "mac", "", "TV MAC address (device identity; required with --device for pairing)")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", discovery.DefaultControlPort, "TV control port")
	rootCmd.PersistentFlags().IntVar(&cmdTimeout, "timeout", 5, "Command timeout in seconds")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(pairCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(volumeCmd)
	rootCmd.AddCommand(muteCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(sourceCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(wakeCmd)
	rootCmd.AddCommand(remoteCmd)
}

// discoverCmd scans for TVs on the network
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan for Vidaa TVs on the network",
	Long: `Scan for Vidaa TVs using mDNS and a UDP broadcast probe.

Both probes run in parallel and results are merged. Finding no TVs is not
an error; only a failure to transmit the probes is.`,
	Example: `  # Scan for 10 seconds (default)
  vidaa-remote discover

  # Quick 3-second scan
  vidaa-remote discover --scan-timeout 3`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&scanTimeout, "scan-timeout", 10, "Scan timeout in seconds")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for Vidaa TVs (timeout: %ds)...\n\n", scanTimeout)

	devices, err := discovery.Scan(time.Duration(scanTimeout) * time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No TVs found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the TV is powered on or in networked standby")
		fmt.Println("  - Check that the TV and this machine share a network segment")
		fmt.Println("  - Try increasing --scan-timeout for slower networks")
		fmt.Println("  - Use --device to specify the IP manually if discovery fails")
		return nil
	}

	fmt.Printf("Found %d TV(s):\n\n", len(devices))
	for i, dev := range devices {
		fmt.Printf("%d. %s\n", i+1, dev.FriendlyName)
		fmt.Printf("   Address: %s\n", dev.Addr())
		if dev.MAC != "" {
			fmt.Printf("   MAC:     %s\n", dev.MAC)
		}
		fmt.Println()
	}

	fmt.Println("Use 'vidaa-remote pair --device <ip> --mac <mac>' to pair")
	return nil
}

// resolveDevice builds the target descriptor from flags, or discovers one.
func resolveDevice(ctx context.Context) (*discovery.Descriptor, error) {
	if deviceIP != "" {
		id := deviceMAC
		if id == "" {
			id = deviceIP
		}
		return &discovery.Descriptor{
			ID:   id,
			IP:   deviceIP,
			Port: devicePort,
			MAC:  deviceMAC,
		}, nil
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = 5 * time.Second
	devices, err := scanner.ScanWithContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no TV found; power the TV on or pass --device")
	}
	if len(devices) > 1 {
		fmt.Printf("Multiple TVs found, using %s\n", devices[0])
	}
	return devices[0], nil
}

// newEngine builds an engine wired to the default credential store.
func newEngine(prompt engine.PinPrompt) (*engine.Engine, error) {
	store, err := credentials.DefaultStore()
	if err != nil {
		return nil, err
	}
	return engine.New(store, engine.Options{
		CommandTimeout: time.Duration(cmdTimeout) * time.Second,
		PinPrompt:      prompt,
	}), nil
}

// promptPIN reads the PIN shown on the TV screen. Echo is disabled when
// stdin is a terminal so the PIN does not linger in scrollback.
func promptPIN(ctx context.Context) (string, error) {
	fmt.Print("Enter the PIN shown on the TV screen: ")

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	var pin string
	if _, err := fmt.Fscanln(os.Stdin, &pin); err != nil {
		return "", err
	}
	return strings.TrimSpace(pin), nil
}

// withSession resolves the device, connects, runs fn, and disconnects.
func withSession(fn func(ctx context.Context, eng *engine.Engine) error) error {
	ctx := context.Background()

	desc, err := resolveDevice(ctx)
	if err != nil {
		return err
	}

	eng, err := newEngine(promptPIN)
	if err != nil {
		return err
	}
	defer eng.Disconnect()

	if err := eng.Connect(ctx, desc); err != nil {
		return err
	}
	return fn(ctx, eng)
}

// pairCmd runs the PIN pairing flow
var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Pair with a TV using the on-screen PIN",
	Long: `Pair with a TV. The TV displays a PIN on its screen; enter it when
prompted. On success the access token is stored so later commands skip
the PIN.`,
	Example: `  # Pair with a discovered TV
  vidaa-remote pair

  # Pair with a specific TV
  vidaa-remote pair --device 192.168.1.50 --mac AA:BB:CC:DD:EE:FF`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, eng *engine.Engine) error {
			fmt.Println("Paired successfully.")
			return nil
		})
	},
}

// keyCmd sends one remote key press
var keyCmd = &cobra.Command{
	Use:   "key <key-name>",
	Short: "Press a remote key",
	Long: `Send one remote key press to the TV.

Key names form a closed vocabulary (KEY_HOME, KEY_UP, KEY_OK, ...);
unknown names are rejected before any network traffic.`,
	Example: `  vidaa-remote key KEY_HOME
  vidaa-remote key KEY_VOLUMEUP

  # List the vocabulary
  vidaa-remote key --list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listKeys, _ := cmd.Flags().GetBool("list"); listKeys {
			for _, name := range protocol.KeyNames() {
				fmt.Println(name)
			}
			return nil
		}
		if len(args) != 1 {
			return fmt.Errorf("expected exactly one key name (see --list)")
		}
		return withSession(func(ctx context.Context, eng *engine.Engine) error {
			return eng.SendKey(ctx, args[0])
		})
	},
}

func init() {
	keyCmd.Flags().Bool("list", false, "List all known key names")
}

// volumeCmd sets the absolute volume level
var volumeCmd = &cobra.Command{
	Use:   "volume <level>",
	Short: "Set the volume level (0-100)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid volume level %q", args[0])
		}
		return withSession(func(ctx context.Context, eng *engine.Engine) error {
			return eng.SetVolume(ctx, level)
		})
	},
}

// muteCmd sets the mute state
var muteCmd = &cobra.Command{
	Use:   "mute <on|off>",
	Short: "Mute or unmute the TV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var muted bool
		switch args[0] {
		case "on":
			muted = true
		case "off":
			muted = false
		default:
			return fmt.Errorf("expected 'on' or 'off', got %q", args[0])
		}
		return withSession(func(ctx context.Context, eng *engine.Engine) error {
			return eng.Mute(ctx, muted)
		})
	},
}

// launchCmd launches an application
var launchCmd = &cobra.Command{
	Use:   "launch <app>",
	Short: "Launch an application",
	Example: `  vidaa-remote launch netflix
  vidaa-remote launch youtube

  # List known applications
  vidaa-remote launch --list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listApps, _ := cmd.Flags().GetBool("list"); listApps {
			for _, name := range protocol.AppNames() {
				fmt.Println(name)
			}
			return nil
		}
		if len(args) != 1 {
			return fmt.Errorf("expected exactly one application name (see --list)")
		}
		return withSession(func(ctx context.Context, eng *engine.Engine) error {
			return eng.LaunchApp(ctx, args[0])
		})
	},
}

func init() {
	launchCmd.Flags().Bool("list", false, "List all known applications")
}

// sourceCmd switches the active input source
var sourceCmd = &cobra.Command{
	Use:   "source <input>",
	Short: "Switch the input source",
	Example: `  vidaa-remote source hdmi1
  vidaa-remote source tv

  # List known sources
  vidaa-remote source --list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listSources, _ := cmd.Flags().GetBool("list"); listSources {
			for _, name := range protocol.SourceNames() {
				fmt.Println(name)
			}
			return nil
		}
		if len(args) != 1 {
			return fmt.Errorf("expected exactly one source name (see --list)")
		}
		return withSession(func(ctx context.Context, eng *engine.Engine) error {
			return eng.SwitchInput(ctx, args[0])
		})
	},
}

func init() {
	sourceCmd.Flags().Bool("list", false, "List all known input sources")
}

// stateCmd prints the TV's last-known state
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the TV's last-known state",
	Long: `Connect, wait briefly for the TV's state broadcasts, and print the
cached view. The state reflects what the TV has broadcast, not commands
still awaiting confirmation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, eng *engine.Engine) error {
			// Give the TV a moment to answer the state kick.
			time.Sleep(1 * time.Second)

			st := eng.GetState()
			fmt.Printf("Volume: %d\n", st.Volume)
			fmt.Printf("Muted:  %v\n", st.Muted)
			if st.Power != "" {
				fmt.Printf("Power:  %s\n", st.Power)
			}
			if st.Input != "" {
				fmt.Printf("Input:  %s\n", st.Input)
			}
			return nil
		})
	},
}

// wakeCmd powers the TV on via wake-on-LAN
var wakeCmd = &cobra.Command{
	Use:   "wake",
	Short: "Power the TV on via wake-on-LAN",
	Long: `Broadcast a wake-on-LAN packet to the TV's MAC address.

This is the only command that works while the TV is fully powered off
and unreachable over its encrypted control channel. It needs no pairing
and no session; delivery is fire-and-forget.`,
	Example: `  vidaa-remote wake --mac AA:BB:CC:DD:EE:FF`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if deviceMAC == "" {
			return fmt.Errorf("wake requires --mac")
		}
		store, err := credentials.DefaultStore()
		if err != nil {
			return err
		}
		eng := engine.New(store, engine.Options{})
		if err := eng.PowerOnViaWake(deviceMAC); err != nil {
			return err
		}
		fmt.Println("Wake packet sent.")
		return nil
	},
}
