package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/cli"
)

func main() {
	cli.Execute()
}
