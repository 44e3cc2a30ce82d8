package config_test

import (
	"fmt"

	"github.com/ajitpratap0/console/pkg/config"
)

// ExampleDefault shows the defaults used when no file is present.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Cookie: %s\n", cfg.Session.CookieName)
	fmt.Printf("Poll interval: %s\n", cfg.Session.PollInterval)
	fmt.Printf("Default route: %s\n", cfg.Views.DefaultRoute)

	// Output:
	// Cookie: console_session
	// Poll interval: 2s
	// Default route: machines/icon/
}

// ExampleConfig_Validate shows how to validate a configuration
// before using it.
func ExampleConfig_Validate() {
	cfg := config.Default()
	cfg.API.BaseURL = "console.example.com"

	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
	}

	// Output:
	// config: api.base_url must be an absolute URL
}
