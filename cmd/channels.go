package cmd

import (
	"flag"
	"fmt"
)

// runTestChannels exercises TestConnection on every enabled channel.
func runTestChannels(args []string) error {
	fs := flag.NewFlagSet("test-channels", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return ExitCodeError{Code: exitConfig}
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.shutdown()

	results := a.gateway.TestChannels()
	if len(results) == 0 {
		fmt.Println(dimStyle.Render("no channels enabled"))
		return nil
	}

	fmt.Println(titleStyle.Render("Channel tests"))
	anyFailed := false
	for name, cherr := range results {
		if cherr != nil {
			anyFailed = true
			fmt.Printf("  %s %-10s %v\n", failStyle.Render("✗"), name, cherr)
		} else {
			fmt.Printf("  %s %-10s\n", okStyle.Render("✓"), name)
		}
	}
	if anyFailed {
		return ExitCodeError{Code: exitPartial}
	}
	return nil
}
