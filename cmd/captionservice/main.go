package main

import (
	"context"
	"os"
	"syscall"

	"github.com/adampresley/imagecaptioning/cmd/captionservice/internal/commands"
	"github.com/charmbracelet/fang"
)

var (
	Version string = "development"
)

func main() {
	root := commands.NewRootCmd(Version)

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}
