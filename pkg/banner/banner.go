package banner

import (
	"fmt"

	"chatline/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗██╗     ██╗███╗   ██╗███████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██║     ██║████╗  ██║██╔════╝
██║     ███████║███████║   ██║   ██║     ██║██╔██╗ ██║█████╗
██║     ██╔══██║██╔══██║   ██║   ██║     ██║██║╚██╗██║██╔══╝
╚██████╗██║  ██║██║  ██║   ██║   ███████╗██║██║ ╚████║███████╗
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚══════╝╚═╝╚═╝  ╚═══╝╚══════╝
`

// Print shows the startup banner with the effective config summary.
func Print(cfg *config.Config, addr, dbPath, sources, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if sources != "" {
		fmt.Printf("Config sources: %s\n", sources)
	}

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /sign - Login or register (JSON: userName, password)")
	fmt.Println("GET  /user-list/{selfId} - Contacts reachable from selfId")
	fmt.Println("GET  /message-list/{selfId}/{peerId} - Direct conversation history")
	fmt.Println("WS   /ws - Realtime event channel")

	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/sign' -d '{\"userName\":\"alice\",\"password\":\"pw\"}'\n", addr)
	fmt.Printf("curl 'http://localhost%s/user-list/<id>'\n", addr)

	fmt.Println("\n== Production? =================================================")
	if cfg != nil && cfg.Server.TLS.CertFile != "" && cfg.Server.TLS.KeyFile != "" {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}
	if cfg != nil && len(cfg.Security.CORS.AllowedOrigins) > 0 {
		fmt.Printf("- CORS origins: %d configured\n", len(cfg.Security.CORS.AllowedOrigins))
	} else {
		fmt.Println("- CORS origins: open (all origins allowed)")
	}
	if cfg != nil && cfg.Retention.Enabled {
		info := ""
		if cfg.Retention.Cron != "" {
			info = " (cron=" + cfg.Retention.Cron + ")"
		}
		fmt.Printf("- Retention: enabled%s\n", info)
	} else {
		fmt.Println("- Retention: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
