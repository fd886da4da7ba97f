//go:build ignore

package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tombabolewski/vidaa-control/internal/credentials"
	"github.com/tombabolewski/vidaa-control/internal/protocol"
)

// Prints the derived broker credentials for a device, for comparing
// against values observed in packet captures.
//
// Usage: go run tools/derive-credentials.go <device-id> <variant> [unix-timestamp]
func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: derive-credentials <device-id> <legacy|middle|modern> [unix-timestamp]")
		fmt.Println("Example: derive-credentials AA:BB:CC:DD:EE:FF modern 1700000000")
		os.Exit(1)
	}

	deviceID := os.Args[1]
	variant, err := protocol.ParseVariant(os.Args[2])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	timestamp := time.Now().Unix()
	if len(os.Args) > 3 {
		timestamp, err = strconv.ParseInt(os.Args[3], 10, 64)
		if err != nil {
			fmt.Printf("Error: bad timestamp: %v\n", err)
			os.Exit(1)
		}
	}

	creds := credentials.DeriveAt(deviceID, variant, timestamp)
	fmt.Printf("variant:   %s\n", variant)
	fmt.Printf("timestamp: %d\n", timestamp)
	fmt.Printf("client_id: %s\n", creds.ClientID)
	fmt.Printf("username:  %s\n", creds.Username)
	fmt.Printf("password:  %s\n", creds.Password)

	static := credentials.DeriveStatic(deviceID)
	fmt.Printf("\nstatic fallback:\n")
	fmt.Printf("client_id: %s\n", static.ClientID)
	fmt.Printf("username:  %s\n", static.Username)
	fmt.Printf("password:  %s\n", static.Password)
}
