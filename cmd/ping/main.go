// Command ping drives an ICMP echo session over the protocol engine's
// own TAP-backed Stack, equivalent to the reference CLI's ping tool.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitsz-netlab/gonet/driver"
	"github.com/hitsz-netlab/gonet/netconf"
	"github.com/hitsz-netlab/gonet/netstack"
)

var (
	configPath string
	count      int
)

var rootCmd = &cobra.Command{
	Use:   "ping <ip>",
	Short: "Send ICMP echo requests over the protocol engine",
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

func main() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (optional)")
	rootCmd.Flags().IntVarP(&count, "count", "n", 4, "number of echo requests to send")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	target, err := parseIP(args[0])
	if err != nil {
		return err
	}

	cfg, err := netconf.Load(configPath)
	if err != nil {
		return err
	}
	ourIP, err := cfg.Interface.Addr()
	if err != nil {
		return err
	}
	ourMAC, err := cfg.Interface.HardwareAddr()
	if err != nil {
		return err
	}

	tap := driver.NewTAP(cfg.Interface.Device)
	stack := netstack.New(ourIP, ourMAC, tap, nil)
	if err := stack.Init(); err != nil {
		return err
	}
	defer stack.Close()

	session := stack.PingTest(uint16(os.Getpid()), target, count, func(line string) {
		fmt.Println(line)
	})

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if err := stack.Poll(); err != nil {
			return err
		}
		if err := session.Poll(time.Now()); err != nil {
			return err
		}
		if session.Done() {
			return nil
		}
	}
	return nil
}

func parseIP(s string) ([4]byte, error) {
	var out [4]byte
	ip := net.ParseIP(s)
	if ip == nil {
		return out, fmt.Errorf("%q is not a valid IPv4 address", s)
	}
	v4 := ip.To4()
	if v4 == nil {
		return out, fmt.Errorf("%q is not a valid IPv4 address", s)
	}
	copy(out[:], v4)
	return out, nil
}
