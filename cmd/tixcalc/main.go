package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/codyseavey/tix-calc/internal/cli"
)

func main() {
	_ = godotenv.Load(".env")

	os.Exit(cli.Execute(os.Args[1:], cli.IO{
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
	}))
}
