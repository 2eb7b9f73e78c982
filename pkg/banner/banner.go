package banner

import (
	"fmt"

	"opschat/pkg/config"
)

const banner = `
 ██████╗ ██████╗ ███████╗ ██████╗██╗  ██╗ █████╗ ████████╗
██╔═══██╗██╔══██╗██╔════╝██╔════╝██║  ██║██╔══██╗╚══██╔══╝
██║   ██║██████╔╝███████╗██║     ███████║███████║   ██║
██║   ██║██╔═══╝ ╚════██║██║     ██╔══██║██╔══██║   ██║
╚██████╔╝██║     ███████║╚██████╗██║  ██║██║  ██║   ██║
 ╚═════╝ ╚═╝     ╚══════╝ ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝
`

// Print renders the startup banner with the effective runtime settings.
func Print(cfg *config.Config, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Backend:       %s\n", cfg.Backend.BaseURL)
	fmt.Printf("Room poll:     %s\n", cfg.RoomPollInterval())
	fmt.Printf("Message poll:  %s\n", cfg.MessagePollInterval())
	if cfg.Snapshot.Enabled {
		fmt.Printf("Snapshot:      %s\n", cfg.Snapshot.Path)
	} else {
		fmt.Println("Snapshot:      disabled")
	}
	if cfg.Debug.Addr != "" {
		fmt.Printf("Debug listen:  %s (/healthz, /metrics, /rooms)\n", cfg.Debug.Addr)
	}
	if version != "" {
		fmt.Printf("Version:       %s\n", version)
	}
	fmt.Println()
}
