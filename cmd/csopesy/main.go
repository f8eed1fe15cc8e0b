// Command csopesy is the entry point for the CSOPESY OS emulator
// shell.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/former-xeneizes/csopesy-go/internal/backingstore"
	"github.com/former-xeneizes/csopesy-go/pkg/csopesy"
)

func main() {
	configPath := flag.String("config", "config.txt", "path to the configuration file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	emu := csopesy.New(*configPath, backingstore.DefaultFile, *logLevel)
	go func() {
		<-sigCh
		emu.Shutdown()
		os.Exit(0)
	}()

	emu.Run(os.Stdin, os.Stdout)
}
